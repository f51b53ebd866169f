package likes

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/database"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/store"
)

// brokenStore fails the named procedures and tables and delegates the rest.
type brokenStore struct {
	store.Store
	procs  map[string]bool
	tables map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func (b *brokenStore) Call(ctx context.Context, proc string, args store.Row) (store.Row, error) {
	b.mu.Lock()
	b.calls[proc]++
	b.mu.Unlock()
	if b.procs[proc] {
		return nil, syscall.ECONNRESET
	}
	return b.Store.Call(ctx, proc, args)
}

func (b *brokenStore) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	if b.tables[table] {
		return nil, syscall.ECONNREFUSED
	}
	return b.Store.Select(ctx, table, q)
}

func setupStore(t *testing.T) *brokenStore {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	s := store.NewGormStore(db)
	_, err = s.Insert(context.Background(), store.TableMemories, store.Row{
		"id":          "m1",
		"kind":        "note",
		"access_code": "AAA",
		"event_date":  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"like_count":  0,
	})
	require.NoError(t, err)

	return &brokenStore{Store: s, procs: map[string]bool{}, tables: map[string]bool{}, calls: map[string]int{}}
}

func TestResolver_ToggleRoundTrip(t *testing.T) {
	s := setupStore(t)
	r := NewResolver(s)
	ctx := context.Background()

	before := r.Resolve(ctx, "m1", "alice")

	liked, err := r.Toggle(ctx, "m1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.LikeState{Count: 1, ViewerHasLiked: true}, liked)
	assert.Equal(t, liked, r.Resolve(ctx, "m1", "alice"))
	assert.Equal(t, models.LikeState{Count: 1}, r.Resolve(ctx, "m1", "bob"))

	after, err := r.Toggle(ctx, "m1", "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResolver_FallsBackToEdges(t *testing.T) {
	s := setupStore(t)
	r := NewResolver(s)
	ctx := context.Background()

	_, err := r.Toggle(ctx, "m1", "alice")
	require.NoError(t, err)

	s.procs[store.ProcLikeSummary] = true
	assert.Equal(t, models.LikeState{Count: 1, ViewerHasLiked: true}, r.Resolve(ctx, "m1", "alice"))
}

func TestResolver_DefaultsWhenEverythingFails(t *testing.T) {
	s := setupStore(t)
	s.procs[store.ProcLikeSummary] = true
	s.tables[store.TableLikes] = true

	state := NewResolver(s).Resolve(context.Background(), "m1", "alice")
	assert.Equal(t, models.LikeState{}, state)
}

func TestResolver_ResolveAll(t *testing.T) {
	s := setupStore(t)
	r := NewResolver(s)
	ctx := context.Background()

	_, err := r.Toggle(ctx, "m1", "alice")
	require.NoError(t, err)

	states := r.ResolveAll(ctx, []string{"m1", "ghost"}, "alice")
	require.Len(t, states, 2)
	assert.Equal(t, models.LikeState{Count: 1, ViewerHasLiked: true}, states["m1"])
	assert.Equal(t, models.LikeState{}, states["ghost"])
}

func TestResolver_ToggleIsNotRetried(t *testing.T) {
	s := setupStore(t)
	s.procs[store.ProcToggleLike] = true

	_, err := NewResolver(s).Toggle(context.Background(), "m1", "alice")
	assert.True(t, errors.Is(err, common.ErrRemoteUnavailable))
	assert.Equal(t, 1, s.calls[store.ProcToggleLike])
}

func TestResolver_ToggleRequiresViewer(t *testing.T) {
	s := setupStore(t)

	_, err := NewResolver(s).Toggle(context.Background(), "m1", "")
	assert.True(t, errors.Is(err, common.ErrNotAuthenticated))
	assert.Zero(t, s.calls[store.ProcToggleLike])
}

func TestResolver_ToggleUnknownMemory(t *testing.T) {
	s := setupStore(t)

	_, err := NewResolver(s).Toggle(context.Background(), "ghost", "alice")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestOptimisticAndReconcile(t *testing.T) {
	current := models.LikeState{Count: 2}

	guess := Optimistic(current)
	assert.Equal(t, models.LikeState{Count: 3, ViewerHasLiked: true}, guess)
	assert.Equal(t, current, Optimistic(guess))
	assert.Equal(t, models.LikeState{}, Optimistic(models.LikeState{ViewerHasLiked: true}))

	server := models.LikeState{Count: 7, ViewerHasLiked: true}
	assert.Equal(t, server, Reconcile(guess, server))
}
