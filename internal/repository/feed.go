package repository

import (
	"context"
	"sync"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/models"
)

// FeedLoader runs multi-board fetches where a newer load for the same key
// supersedes an older one. The older load is cancelled before the newer one
// starts, and its result is discarded even if it completes afterwards.
type FeedLoader struct {
	repo *MemoryRepository

	mu       sync.Mutex
	seq      uint64
	inflight map[string]feedLoad
}

type feedLoad struct {
	seq    uint64
	cancel context.CancelFunc
}

func NewFeedLoader(repo *MemoryRepository) *FeedLoader {
	return &FeedLoader{repo: repo, inflight: make(map[string]feedLoad)}
}

// Load fetches the feed for codes under key. A superseded load returns an
// Aborted error.
func (f *FeedLoader) Load(ctx context.Context, key string, codes []string, viewerID string, limit int) ([]models.Memory, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	seq := f.start(key, cancel)
	defer f.finish(key, seq)

	memories, err := f.repo.FetchByAccessCodes(ctx, codes, viewerID, limit)
	if err != nil {
		return nil, err
	}
	if !f.current(key, seq) || ctx.Err() != nil {
		return nil, common.Aborted(context.Canceled)
	}
	return memories, nil
}

func (f *FeedLoader) start(key string, cancel context.CancelFunc) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.inflight[key]; ok {
		prev.cancel()
	}
	f.seq++
	f.inflight[key] = feedLoad{seq: f.seq, cancel: cancel}
	return f.seq
}

func (f *FeedLoader) current(key string, seq uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight[key].seq == seq
}

func (f *FeedLoader) finish(key string, seq uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight[key].seq == seq {
		delete(f.inflight, key)
	}
}
