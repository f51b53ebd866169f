package repository

import (
	"context"
	"encoding/json"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arnold/memories-api/internal/cache"
	"github.com/arnold/memories-api/internal/database"
	"github.com/arnold/memories-api/internal/likes"
	"github.com/arnold/memories-api/internal/retry"
	"github.com/arnold/memories-api/internal/store"
)

// faultyStore wraps a real store and lets tests fail or stall chosen calls.
type faultyStore struct {
	store.Store

	mu         sync.Mutex
	beforeRead func(ctx context.Context, table string, q store.Query) error
	failWrite  map[string]bool
	failCall   map[string]bool
	selects    int
}

func (f *faultyStore) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	f.mu.Lock()
	f.selects++
	hook := f.beforeRead
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, table, q); err != nil {
			return nil, err
		}
	}
	return f.Store.Select(ctx, table, q)
}

func (f *faultyStore) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	if f.failing(f.failWrite, table) {
		return nil, syscall.ECONNRESET
	}
	return f.Store.Insert(ctx, table, rows...)
}

func (f *faultyStore) Upsert(ctx context.Context, table string, conflict []string, rows ...store.Row) ([]store.Row, error) {
	if f.failing(f.failWrite, table) {
		return nil, syscall.ECONNRESET
	}
	return f.Store.Upsert(ctx, table, conflict, rows...)
}

func (f *faultyStore) Call(ctx context.Context, procedure string, args store.Row) (store.Row, error) {
	if f.failing(f.failCall, procedure) {
		return nil, syscall.EINVAL
	}
	return f.Store.Call(ctx, procedure, args)
}

func (f *faultyStore) failing(set map[string]bool, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return set[name]
}

func (f *faultyStore) setBeforeRead(hook func(ctx context.Context, table string, q store.Query) error) {
	f.mu.Lock()
	f.beforeRead = hook
	f.mu.Unlock()
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func fastExecutor(name string, attempts int) retry.Executor {
	return retry.Executor{Name: name, MaxAttempts: attempts, Sleep: noSleep}
}

func testMemoryOptions() MemoryOptions {
	return MemoryOptions{
		DefaultLimit: 100,
		ChunkSize:    5,
		ReadRetry:    fastExecutor("test_read", 3),
		ChunkRetry:   fastExecutor("test_chunk", 2),
		WriteRetry:   fastExecutor("test_write", 3),
	}
}

func testBoardOptions() BoardOptions {
	return BoardOptions{
		CacheTTL:   time.Minute,
		ReadRetry:  fastExecutor("test_board_read", 3),
		WriteRetry: fastExecutor("test_board_write", 3),
	}
}

func setupFaultyStore(t *testing.T) *faultyStore {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	return &faultyStore{Store: store.NewGormStore(db), failWrite: map[string]bool{}, failCall: map[string]bool{}}
}

func setupMemoryRepo(t *testing.T) (*MemoryRepository, *faultyStore) {
	t.Helper()
	s := setupFaultyStore(t)
	return NewMemoryRepository(s, likes.NewResolver(s), testMemoryOptions()), s
}

// memoryCache is an in-process cache.Service for tests.
type memoryCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) GetUserBoards(ctx context.Context, userID string, dest interface{}) error {
	return m.Get(ctx, cache.PrefixUserBoards+userID, dest)
}

func (m *memoryCache) SetUserBoards(ctx context.Context, userID string, boards interface{}, ttl time.Duration) error {
	return m.Set(ctx, cache.PrefixUserBoards+userID, boards, ttl)
}

func (m *memoryCache) InvalidateUserBoards(ctx context.Context, userIDs ...string) error {
	m.mu.Lock()
	m.invalidated = append(m.invalidated, userIDs...)
	m.mu.Unlock()
	for _, id := range userIDs {
		_ = m.Delete(ctx, cache.PrefixUserBoards+id)
	}
	return nil
}

func (m *memoryCache) IsAvailable() bool            { return true }
func (m *memoryCache) Ping(_ context.Context) error { return nil }
