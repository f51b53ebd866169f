package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TTLBoards  = 30 * time.Second
	TTLDefault = 5 * time.Minute
)

const PrefixUserBoards = "user_boards:"

// ErrMiss is returned by Get when the key is absent or the cache is off.
var ErrMiss = errors.New("cache: miss")

// Service is a JSON cache. Every method is safe to call without redis
// configured: writes are dropped and reads miss.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	GetUserBoards(ctx context.Context, userID string, dest interface{}) error
	SetUserBoards(ctx context.Context, userID string, boards interface{}, ttl time.Duration) error
	InvalidateUserBoards(ctx context.Context, userIDs ...string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService wraps client. A nil client yields a no-op cache.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// NewClient connects to a redis URL such as redis://localhost:6379/0. An
// empty URL returns a nil client.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) GetUserBoards(ctx context.Context, userID string, dest interface{}) error {
	return c.Get(ctx, PrefixUserBoards+userID, dest)
}

func (c *redisCache) SetUserBoards(ctx context.Context, userID string, boards interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLBoards
	}
	return c.Set(ctx, PrefixUserBoards+userID, boards, ttl)
}

func (c *redisCache) InvalidateUserBoards(ctx context.Context, userIDs ...string) error {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = PrefixUserBoards + id
	}
	return c.Delete(ctx, keys...)
}
