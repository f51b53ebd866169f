package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/store"
)

func TestToMemory_KindResolution(t *testing.T) {
	tests := []struct {
		name string
		row  store.Row
		want models.MemoryKind
	}{
		{"explicit kind", store.Row{"kind": "note", "is_video": true}, models.KindNote},
		{"kind is case insensitive", store.Row{"kind": "Carousel"}, models.KindCarousel},
		{"legacy video", store.Row{"is_video": true}, models.KindVideo},
		{"legacy video from sqlite numeric", store.Row{"is_video": float64(1)}, models.KindVideo},
		{"legacy video from int", store.Row{"is_video": int64(1)}, models.KindVideo},
		{"legacy photo", store.Row{"is_video": false}, models.KindPhoto},
		{"no discriminator at all", store.Row{}, models.KindPhoto},
		{"null kind", store.Row{"kind": nil, "is_video": "true"}, models.KindVideo},
		{"unknown kind falls back", store.Row{"kind": "gif"}, models.KindPhoto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMemory(tt.row).Kind)
		})
	}
}

func TestToMemory_Defaults(t *testing.T) {
	m := ToMemory(store.Row{"id": "m1", "access_code": "AAA"})

	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, 0, m.LikeCount)
	assert.False(t, m.ViewerHasLiked)
	assert.Nil(t, m.Caption)
	assert.Nil(t, m.Location)
	assert.Nil(t, m.PrimaryMediaURL)
	assert.True(t, m.EventDate.IsZero())
}

func TestToMemory_Scalars(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := ToMemory(store.Row{
		"id":          "m1",
		"kind":        "photo",
		"caption":     "hello",
		"access_code": "AAA",
		"like_count":  int64(-3),
		"image_url":   "https://cdn.example/legacy.jpg",
		"event_date":  "2024-06-01 10:00:00+00:00",
		"created_at":  created,
	})

	assert.Equal(t, 0, m.LikeCount)
	require.NotNil(t, m.Caption)
	assert.Equal(t, "hello", *m.Caption)
	require.NotNil(t, m.PrimaryMediaURL)
	assert.Equal(t, "https://cdn.example/legacy.jpg", *m.PrimaryMediaURL)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), m.EventDate)
	assert.Equal(t, created, m.CreatedAt)
}

func TestToMemory_EventDateFallsBackToCreatedAt(t *testing.T) {
	m := ToMemory(store.Row{"created_at": "2024-03-04T05:06:07Z"})
	assert.Equal(t, time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC), m.EventDate)
}

func TestToMemory_NoteHasNoPrimaryURL(t *testing.T) {
	m := ToMemory(store.Row{"kind": "note", "media_url": "https://stale"})
	assert.Nil(t, m.PrimaryMediaURL)
}

func TestAttachMedia(t *testing.T) {
	items := ToMediaItems([]store.Row{
		{"id": "b", "memory_id": "m1", "url": "u2", "sort_order": int64(1), "is_video": float64(1)},
		{"id": "a", "memory_id": "m1", "url": "u1", "order": 0},
	})
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.True(t, items[1].IsVideo)

	carousel := AttachMedia(ToMemory(store.Row{"id": "m1", "kind": "carousel"}), items)
	require.NotNil(t, carousel.PrimaryMediaURL)
	assert.Equal(t, "u1", *carousel.PrimaryMediaURL)
	assert.Len(t, carousel.MediaItems, 2)

	photo := AttachMedia(ToMemory(store.Row{"kind": "photo", "media_url": "p"}), items)
	assert.Empty(t, photo.MediaItems)
	assert.Equal(t, "p", *photo.PrimaryMediaURL)
}

func TestToBoard(t *testing.T) {
	b := ToBoard(store.Row{"id": "b1", "name": "Trip", "share_code": "abc123", "owner_id": "alice"}, nil)

	assert.Equal(t, "ABC123", b.ShareCode)
	assert.NotNil(t, b.MemberIDs)
	assert.True(t, b.HasMember("alice"))
}

func TestToLikeState(t *testing.T) {
	assert.Equal(t, models.LikeState{Count: 4, ViewerHasLiked: true},
		ToLikeState(store.Row{"count": int64(4), "viewer_has_liked": true}))
	assert.Equal(t, models.LikeState{Count: 2},
		ToLikeState(store.Row{"like_count": "2"}))
	assert.Equal(t, models.LikeState{},
		ToLikeState(store.Row{"count": -1}))
}
