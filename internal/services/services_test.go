package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/database"
	"github.com/arnold/memories-api/internal/models"
)

type recordingHub struct {
	mu     sync.Mutex
	events []models.Event
	skip   []string
}

func (h *recordingHub) Broadcast(boardID, excludeUserID string, event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	h.skip = append(h.skip, excludeUserID)
}

func TestNotifier_MemoryCreated(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.User{ID: "alice", Email: "alice@example.com", Name: "Alice"}).Error)
	require.NoError(t, db.Create(&models.BoardRecord{
		ID: "b1", Name: "Lisbon", AccessCode: "AAAAAA", ShareCode: "SSSSSS", OwnerID: "alice",
	}).Error)
	for _, m := range []models.BoardMember{
		{BoardID: "b1", UserID: "alice", Role: models.RoleOwner},
		{BoardID: "b1", UserID: "bob", Role: models.RoleMember},
		{BoardID: "b1", UserID: "carol", Role: models.RoleMember},
	} {
		require.NoError(t, db.Create(&m).Error)
	}

	hub := &recordingHub{}
	n := NewNotifier(db, NewPush(context.Background(), db, ""), hub)

	memory := models.Memory{ID: "m1", Kind: models.KindNote, AccessCode: "AAAAAA", EventDate: time.Now()}
	require.NoError(t, n.MemoryCreated(context.Background(), memory, "alice"))

	var notes []models.Notification
	require.NoError(t, db.Order("user_id").Find(&notes).Error)
	require.Len(t, notes, 2)
	assert.Equal(t, "bob", notes[0].UserID)
	assert.Equal(t, "carol", notes[1].UserID)
	assert.Equal(t, "Alice added a new memory", notes[0].Body)
	require.NotNil(t, notes[0].Metadata)
	assert.Contains(t, *notes[0].Metadata, `"memoryId":"m1"`)

	require.Len(t, hub.events, 1)
	assert.Equal(t, models.EventMemoryCreated, hub.events[0].Type)
	assert.Equal(t, "alice", hub.skip[0])
}

func TestNotifier_UnknownBoard(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	n := NewNotifier(db, nil, nil)

	err = n.MemoryCreated(context.Background(), models.Memory{ID: "m1", AccessCode: "NOPE00"}, "alice")
	assert.Error(t, err)
}

func TestPush_DisabledWithoutServiceAccount(t *testing.T) {
	p := NewPush(context.Background(), nil, "")
	assert.False(t, p.Enabled())
	p.SendToUser(context.Background(), "alice", "t", "b", nil)

	var nilPush *PushService
	assert.False(t, nilPush.Enabled())
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, "/uploads/")
	ctx := context.Background()

	url, err := u.Upload(ctx, strings.NewReader("jpeg bytes"), "Beach.JPG", "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/alice/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"), url)

	data, err := os.ReadFile(filepath.Join(dir, "alice", filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	_, err = u.Upload(ctx, strings.NewReader("x"), "script.sh", "alice")
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = u.Upload(ctx, strings.NewReader("x"), "a.png", "")
	assert.True(t, errors.Is(err, common.ErrNotAuthenticated))
}
