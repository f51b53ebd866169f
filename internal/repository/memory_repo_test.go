package repository

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/store"
)

var day0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func note(id, code string, daysAfter int) models.NewMemory {
	return models.NewMemory{
		ID:         id,
		Kind:       models.KindNote,
		Caption:    ptr("note " + id),
		EventDate:  day0.AddDate(0, 0, daysAfter),
		AccessCode: code,
	}
}

func seed(t *testing.T, r *MemoryRepository, memories ...models.NewMemory) {
	t.Helper()
	for _, m := range memories {
		_, err := r.Create(context.Background(), "alice", m)
		require.NoError(t, err)
	}
}

func ids(memories []models.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.ID
	}
	return out
}

func TestFetchByAccessCodes_MergesAndSorts(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	seed(t, r,
		note("a1", "AAA", 1), note("a2", "AAA", 5), note("a3", "AAA", 3),
		note("b1", "BBB", 4), note("b2", "BBB", 2),
	)

	got, err := r.FetchByAccessCodes(context.Background(), []string{"AAA", "BBB"}, "alice", 100)
	require.NoError(t, err)

	assert.Equal(t, []string{"a2", "b1", "a3", "b2", "a1"}, ids(got))
}

func TestFetchByAccessCodes_LimitAppliesAfterMerge(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	r.opts.ChunkSize = 1
	seed(t, r,
		note("old1", "OLD", 1), note("old2", "OLD", 2),
		note("new1", "NEW", 10), note("new2", "NEW", 11), note("new3", "NEW", 12),
	)

	got, err := r.FetchByAccessCodes(context.Background(), []string{"OLD", "NEW", "OLD", " "}, "alice", 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"new3", "new2", "new1", "old2"}, ids(got))
}

func TestFetchByAccessCodes_Properties(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	r.opts.ChunkSize = 2

	var codes []string
	for c := 0; c < 7; c++ {
		code := fmt.Sprintf("C%02d", c)
		codes = append(codes, code)
		for i := 0; i < 4; i++ {
			seed(t, r, note(fmt.Sprintf("%s-%d", code, i), code, (c*3+i*5)%11))
		}
	}

	for _, limit := range []int{1, 5, 13, 100} {
		got, err := r.FetchByAccessCodes(context.Background(), codes, "alice", limit)
		require.NoError(t, err)

		assert.LessOrEqual(t, len(got), limit)
		seen := map[string]bool{}
		for i, m := range got {
			assert.False(t, seen[m.ID], "duplicate %s", m.ID)
			seen[m.ID] = true
			if i > 0 {
				assert.False(t, m.EventDate.After(got[i-1].EventDate), "not sorted at %d", i)
			}
		}
	}
}

func TestFetchByAccessCodes_FailedChunkDegrades(t *testing.T) {
	r, s := setupMemoryRepo(t)
	r.opts.ChunkSize = 1
	seed(t, r, note("a1", "AAA", 1), note("b1", "BAD", 2), note("c1", "CCC", 3))

	s.setBeforeRead(func(_ context.Context, table string, q store.Query) error {
		if table != store.TableMemories {
			return nil
		}
		for _, f := range q.Filters {
			if codes, ok := f.Value.([]string); ok && len(codes) == 1 && codes[0] == "BAD" {
				return syscall.ECONNREFUSED
			}
		}
		return nil
	})

	got, err := r.FetchByAccessCodes(context.Background(), []string{"AAA", "BAD", "CCC"}, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "a1"}, ids(got))
}

func TestFetchByAccessCodes_EmptyAndCancelled(t *testing.T) {
	r, s := setupMemoryRepo(t)

	got, err := r.FetchByAccessCodes(context.Background(), nil, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := s.selects
	_, err = r.FetchByAccessCodes(ctx, []string{"AAA"}, "alice", 10)
	assert.True(t, errors.Is(err, common.ErrAborted))
	assert.Equal(t, before, s.selects)
}

func TestCreate_ThenFetchShowsFreshState(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, "alice", models.NewMemory{
		Kind:            models.KindPhoto,
		EventDate:       day0,
		AccessCode:      " AAA ",
		PrimaryMediaURL: ptr("https://cdn.example/p.jpg"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "AAA", created.AccessCode)

	got, err := r.FetchByAccessCode(ctx, "AAA", "alice", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)
	assert.Equal(t, models.KindPhoto, got[0].Kind)
	assert.Equal(t, 0, got[0].LikeCount)
	assert.False(t, got[0].ViewerHasLiked)
	require.NotNil(t, got[0].CreatedBy)
	assert.Equal(t, "alice", *got[0].CreatedBy)
}

func TestCreate_Rejections(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, "", note("n1", "AAA", 0))
	assert.True(t, errors.Is(err, common.ErrNotAuthenticated))

	_, err = r.Create(ctx, "alice", models.NewMemory{Kind: models.KindPhoto, EventDate: day0, AccessCode: "AAA"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = r.Create(ctx, "alice", note("n1", "", 0))
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestCreate_Carousel(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, "alice", models.NewMemory{
		ID:         "c1",
		Kind:       models.KindCarousel,
		EventDate:  day0,
		AccessCode: "AAA",
		MediaItems: []models.NewMediaItem{{URL: "u1"}, {URL: "u2", IsVideo: true}},
	})
	require.NoError(t, err)
	require.NotNil(t, created.PrimaryMediaURL)
	assert.Equal(t, "u1", *created.PrimaryMediaURL)

	got, err := r.Get(ctx, "c1", "alice")
	require.NoError(t, err)
	require.Len(t, got.MediaItems, 2)
	assert.Equal(t, 0, got.MediaItems[0].Order)
	assert.Equal(t, "u2", got.MediaItems[1].URL)
	assert.True(t, got.MediaItems[1].IsVideo)
	assert.Equal(t, "u1", *got.PrimaryMediaURL)
}

func TestCreate_CarouselMediaFailureIsSurfaced(t *testing.T) {
	r, s := setupMemoryRepo(t)
	s.failWrite[store.TableMediaItems] = true

	created, err := r.Create(context.Background(), "alice", models.NewMemory{
		ID:         "c1",
		Kind:       models.KindCarousel,
		EventDate:  day0,
		AccessCode: "AAA",
		MediaItems: []models.NewMediaItem{{URL: "u1"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMediaItemsNotSaved))
	assert.Equal(t, "c1", created.ID)

	got, err := r.Get(context.Background(), "c1", "alice")
	require.NoError(t, err)
	assert.Empty(t, got.MediaItems)
}

func TestCreate_ExistingIDIsNotTakenOver(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, note("m1", "AAA", 0))

	hijack := note("m1", "BBB", 3)
	hijack.Caption = ptr("hijacked")
	_, err := r.Create(ctx, "mallory", hijack)
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	_, err = r.Create(ctx, "alice", note("m1", "BBB", 0))
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	other, err := r.FetchByAccessCode(ctx, "BBB", "mallory", 10)
	require.NoError(t, err)
	assert.Empty(t, other)

	got, err := r.FetchByAccessCode(ctx, "AAA", "alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "note m1", *got[0].Caption)
	assert.Equal(t, "alice", *got[0].CreatedBy)

	again, err := r.Create(ctx, "alice", note("m1", "AAA", 0))
	require.NoError(t, err)
	assert.Equal(t, "m1", again.ID)
}

func TestCreate_MediaItemOfAnotherCarouselIsRefused(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, models.NewMemory{
		ID: "c1", Kind: models.KindCarousel, EventDate: day0, AccessCode: "AAA",
		MediaItems: []models.NewMediaItem{{ID: "i1", URL: "u1"}},
	})

	_, err := r.Create(ctx, "mallory", models.NewMemory{
		ID: "c2", Kind: models.KindCarousel, EventDate: day0, AccessCode: "BBB",
		MediaItems: []models.NewMediaItem{{ID: "i1", URL: "stolen"}},
	})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	_, err = r.Get(ctx, "c2", "mallory")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	got, err := r.Get(ctx, "c1", "alice")
	require.NoError(t, err)
	require.Len(t, got.MediaItems, 1)
	assert.Equal(t, "u1", got.MediaItems[0].URL)
}

type notifierFunc func(ctx context.Context, m models.Memory, authorID string) error

func (f notifierFunc) MemoryCreated(ctx context.Context, m models.Memory, authorID string) error {
	return f(ctx, m, authorID)
}

func TestCreate_NotifiesDetached(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	done := make(chan string, 1)
	r.SetNotifier(notifierFunc(func(_ context.Context, m models.Memory, authorID string) error {
		done <- m.ID + ":" + authorID
		panic("notifier blew up")
	}))

	_, err := r.Create(context.Background(), "alice", note("n1", "AAA", 0))
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, "n1:alice", got)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, models.NewMemory{
		ID: "n1", Kind: models.KindNote, EventDate: day0, AccessCode: "AAA",
		Caption: ptr("first"), Location: ptr("Porto"),
	})

	updated, err := r.Update(ctx, "alice", "n1", models.MemoryPatch{Location: models.Null[string]()})
	require.NoError(t, err)
	require.NotNil(t, updated.Caption)
	assert.Equal(t, "first", *updated.Caption)
	assert.Nil(t, updated.Location)

	later := day0.AddDate(0, 0, 3)
	updated, err = r.Update(ctx, "alice", "n1", models.MemoryPatch{
		Caption:   models.Some("second"),
		EventDate: models.Some(later),
	})
	require.NoError(t, err)
	assert.Equal(t, "second", *updated.Caption)
	assert.True(t, later.Equal(updated.EventDate))

	_, err = r.Update(ctx, "alice", "n1", models.MemoryPatch{})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = r.Update(ctx, "alice", "ghost", models.MemoryPatch{Caption: models.Some("x")})
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = r.Update(ctx, "", "n1", models.MemoryPatch{Caption: models.Some("x")})
	assert.True(t, errors.Is(err, common.ErrNotAuthenticated))
}

func TestDelete_WrongAccessCodeFailsClosed(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, note("n1", "AAA", 0))

	_, err := r.Delete(ctx, "alice", "n1", "BBB")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	got, err := r.FetchByAccessCode(ctx, "AAA", "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, ids(got))
}

func TestDelete_ReturnsDeletedMemory(t *testing.T) {
	r, s := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, models.NewMemory{
		ID: "c1", Kind: models.KindCarousel, EventDate: day0, AccessCode: "AAA",
		MediaItems: []models.NewMediaItem{{URL: "u1"}, {URL: "u2"}},
	})
	_, err := r.ToggleLike(ctx, "c1", "bob")
	require.NoError(t, err)

	deleted, err := r.Delete(ctx, "alice", "c1", "AAA")
	require.NoError(t, err)
	assert.Equal(t, "c1", deleted.ID)
	assert.Len(t, deleted.MediaItems, 2)

	_, err = r.Get(ctx, "c1", "alice")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	for _, table := range []string{store.TableMediaItems, store.TableLikes} {
		rows, err := s.Store.Select(ctx, table, store.Query{})
		require.NoError(t, err)
		assert.Empty(t, rows, table)
	}
}

func TestToggleLike_RoundTrip(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, note("n1", "AAA", 0))

	first, err := r.ToggleLike(ctx, "n1", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.LikeState{Count: 1, ViewerHasLiked: true}, first)

	got, err := r.Get(ctx, "n1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.ViewerHasLiked)

	second, err := r.ToggleLike(ctx, "n1", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.LikeState{}, second)
}

func TestReplaceMedia_Reorders(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, models.NewMemory{
		ID: "c1", Kind: models.KindCarousel, EventDate: day0, AccessCode: "AAA",
		MediaItems: []models.NewMediaItem{{ID: "i1", URL: "u1"}, {ID: "i2", URL: "u2"}, {ID: "i3", URL: "u3"}},
	})

	got, err := r.ReplaceMedia(ctx, "alice", "c1", []models.NewMediaItem{
		{ID: "i3", URL: "u3"}, {ID: "i1", URL: "u1"},
	})
	require.NoError(t, err)
	require.Len(t, got.MediaItems, 2)
	assert.Equal(t, "i3", got.MediaItems[0].ID)
	assert.Equal(t, 0, got.MediaItems[0].Order)
	assert.Equal(t, "i1", got.MediaItems[1].ID)
	assert.Equal(t, 1, got.MediaItems[1].Order)
	assert.Equal(t, "u3", *got.PrimaryMediaURL)

	seed(t, r, note("n1", "AAA", 0))
	_, err = r.ReplaceMedia(ctx, "alice", "n1", []models.NewMediaItem{{URL: "u"}})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = r.ReplaceMedia(ctx, "alice", "c1", nil)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestReplaceMedia_FailureKeepsOldItems(t *testing.T) {
	r, s := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r, models.NewMemory{
		ID: "c1", Kind: models.KindCarousel, EventDate: day0, AccessCode: "AAA",
		MediaItems: []models.NewMediaItem{{ID: "i1", URL: "u1"}, {ID: "i2", URL: "u2"}},
	})
	s.failCall[store.ProcReplaceMedia] = true

	_, err := r.ReplaceMedia(ctx, "alice", "c1", []models.NewMediaItem{{ID: "i3", URL: "u3"}})
	require.Error(t, err)

	got, err := r.Get(ctx, "c1", "alice")
	require.NoError(t, err)
	require.Len(t, got.MediaItems, 2)
	require.NotNil(t, got.PrimaryMediaURL)
	assert.Equal(t, "u1", *got.PrimaryMediaURL)
}

func TestReplaceMedia_ItemOfAnotherCarouselIsRefused(t *testing.T) {
	r, _ := setupMemoryRepo(t)
	ctx := context.Background()
	seed(t, r,
		models.NewMemory{
			ID: "c1", Kind: models.KindCarousel, EventDate: day0, AccessCode: "AAA",
			MediaItems: []models.NewMediaItem{{ID: "i1", URL: "u1"}},
		},
		models.NewMemory{
			ID: "c2", Kind: models.KindCarousel, EventDate: day0, AccessCode: "AAA",
			MediaItems: []models.NewMediaItem{{ID: "i2", URL: "u2"}},
		},
	)

	_, err := r.ReplaceMedia(ctx, "alice", "c2", []models.NewMediaItem{{ID: "i1", URL: "u1"}})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	for id, url := range map[string]string{"c1": "u1", "c2": "u2"} {
		got, err := r.Get(ctx, id, "alice")
		require.NoError(t, err)
		require.Len(t, got.MediaItems, 1)
		assert.Equal(t, url, got.MediaItems[0].URL)
	}
}

func TestFetchByAccessCode_RetriesTransientFailures(t *testing.T) {
	r, s := setupMemoryRepo(t)
	seed(t, r, note("n1", "AAA", 0))

	failures := 2
	s.setBeforeRead(func(_ context.Context, table string, _ store.Query) error {
		if table == store.TableMemories && failures > 0 {
			failures--
			return syscall.ECONNRESET
		}
		return nil
	})

	got, err := r.FetchByAccessCode(context.Background(), "AAA", "alice", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Zero(t, failures)
}
