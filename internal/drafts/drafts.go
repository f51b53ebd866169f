// Package drafts caches unpublished memories locally and mirrors them to the
// remote drafts table in the background. The local cache is the source of
// truth for the running process; the remote copy is a backstop for other
// devices.
package drafts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/metrics"
	"github.com/arnold/memories-api/internal/models"
)

// StorageKey names the local blob holding every draft.
const StorageKey = "memories.drafts.v1"

const syncTimeout = 30 * time.Second

type Store struct {
	storage Storage
	remote  *Remote
	userID  string
	now     func() time.Time
	log     zerolog.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewStore returns a draft store for userID. remote may be nil, in which
// case the remote operations do nothing.
func NewStore(storage Storage, remote *Remote, userID string) *Store {
	return &Store{
		storage: storage,
		remote:  remote,
		userID:  userID,
		now:     time.Now,
		log:     logger.Component("drafts"),
	}
}

func (s *Store) read() ([]models.Draft, error) {
	data, err := s.storage.Read(StorageKey)
	if err != nil {
		return nil, common.Wrap(err, common.TypeUnknown, "read drafts")
	}
	if len(data) == 0 {
		return []models.Draft{}, nil
	}
	var drafts []models.Draft
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, common.Wrap(err, common.TypeUnknown, "decode drafts")
	}
	return drafts, nil
}

func (s *Store) write(drafts []models.Draft) error {
	data, err := json.Marshal(drafts)
	if err != nil {
		return common.Wrap(err, common.TypeUnknown, "encode drafts")
	}
	if err := s.storage.Write(StorageKey, data); err != nil {
		return common.Wrap(err, common.TypeUnknown, "write drafts")
	}
	return nil
}

// Save inserts or replaces d and rewrites the whole collection, newest
// first. A zero LastUpdated is set to now.
func (s *Store) Save(d models.Draft) (models.Draft, error) {
	if d.ID == "" {
		return models.Draft{}, common.Validation("A draft id is required")
	}
	if d.LastUpdated.IsZero() {
		d.LastUpdated = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.read()
	if err != nil {
		return models.Draft{}, err
	}
	replaced := false
	for i := range drafts {
		if drafts[i].ID == d.ID {
			drafts[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		drafts = append(drafts, d)
	}
	sortDrafts(drafts)

	if err := s.write(drafts); err != nil {
		return models.Draft{}, err
	}
	return d, nil
}

func (s *Store) List() ([]models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Get returns the local draft with id; found is false when absent.
func (s *Store) Get(id string) (draft models.Draft, found bool, err error) {
	drafts, err := s.List()
	if err != nil {
		return models.Draft{}, false, err
	}
	for _, d := range drafts {
		if d.ID == id {
			return d, true, nil
		}
	}
	return models.Draft{}, false, nil
}

// Delete removes the local draft. Removing a missing draft is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.read()
	if err != nil {
		return err
	}
	kept := drafts[:0]
	for _, d := range drafts {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(drafts) {
		return nil
	}
	return s.write(kept)
}

// SyncToRemote mirrors d to the remote store in the background. The caller
// does not wait; failures are logged and the local copy is kept as is.
func (s *Store) SyncToRemote(ctx context.Context, d models.Draft) {
	s.detach(ctx, "sync", d.ID, func(ctx context.Context) error {
		return s.remote.Upsert(ctx, s.userID, d)
	})
}

// DeleteRemote removes the remote copy of a draft in the background.
func (s *Store) DeleteRemote(ctx context.Context, id string) {
	s.detach(ctx, "delete", id, func(ctx context.Context) error {
		return s.remote.Delete(ctx, s.userID, id)
	})
}

// Discard deletes a draft locally and, in the background, remotely.
func (s *Store) Discard(ctx context.Context, id string) error {
	if err := s.Delete(id); err != nil {
		return err
	}
	s.DeleteRemote(ctx, id)
	return nil
}

// detach runs op on its own goroutine. It keeps ctx values but not its
// cancellation, so the work outlives the request that started it.
func (s *Store) detach(ctx context.Context, op, id string, fn func(ctx context.Context) error) {
	if s.remote == nil || s.userID == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				metrics.DraftSyncs.WithLabelValues(op, "panic").Inc()
				s.log.Error().Interface("panic", p).Str("draft_id", id).Str("op", op).Msg("draft sync panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.DraftSyncs.WithLabelValues(op, "failed").Inc()
			s.log.Warn().Err(err).Str("draft_id", id).Str("op", op).Msg("draft sync failed")
			return
		}
		metrics.DraftSyncs.WithLabelValues(op, "ok").Inc()
	}()
}

// Wait blocks until background syncs started so far have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Load returns a draft, preferring the remote copy when one exists. When
// the remote read fails or finds nothing the local copy is used. The two are
// never merged.
func (s *Store) Load(ctx context.Context, id string) (draft models.Draft, found bool, err error) {
	if s.remote != nil && s.userID != "" {
		remote, ok, err := s.remote.Get(ctx, s.userID, id)
		switch {
		case err != nil:
			if common.IsAborted(err) {
				return models.Draft{}, false, err
			}
			s.log.Warn().Err(err).Str("draft_id", id).Msg("remote draft unavailable, using local copy")
		case ok:
			if _, err := s.Save(remote); err != nil {
				s.log.Warn().Err(err).Str("draft_id", id).Msg("could not cache remote draft locally")
			}
			return remote, true, nil
		}
	}
	return s.Get(id)
}
