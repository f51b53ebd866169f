package cli

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/arnold/memories-api/internal/cache"
	"github.com/arnold/memories-api/internal/config"
	"github.com/arnold/memories-api/internal/database"
	"github.com/arnold/memories-api/internal/drafts"
	"github.com/arnold/memories-api/internal/likes"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/repository"
	"github.com/arnold/memories-api/internal/retry"
	"github.com/arnold/memories-api/internal/store"
)

// app is the set of repositories every command works through.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	redis    *redis.Client
	store    store.Store
	boards   *repository.BoardRepository
	memories *repository.MemoryRepository
	drafts   *drafts.Remote
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, db), nil
}

// newApp wires repositories over db. An unreachable redis disables the
// board cache rather than failing.
func newApp(ctx context.Context, cfg *config.Config, db *gorm.DB) *app {
	log := logger.Component("app")

	rdb, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, board cache disabled")
		rdb = nil
	}

	s := store.NewGormStore(db)
	memories := repository.NewMemoryRepository(s, likes.NewResolver(s), repository.MemoryOptionsFromConfig(cfg))
	boards := repository.NewBoardRepository(s, cache.NewService(rdb), repository.BoardOptionsFromConfig(cfg))

	remote := drafts.NewRemote(s)
	if cfg.Retry.InitialDelay > 0 {
		remote.WithRetry(
			retry.Executor{Name: "draft_read", MaxAttempts: cfg.Retry.ReadAttempts, InitialDelay: cfg.Retry.InitialDelay},
			retry.Executor{Name: "draft_write", MaxAttempts: cfg.Retry.WriteAttempts, InitialDelay: cfg.Retry.InitialDelay},
		)
	}

	return &app{
		cfg:      cfg,
		db:       db,
		redis:    rdb,
		store:    s,
		boards:   boards,
		memories: memories,
		drafts:   remote,
	}
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
