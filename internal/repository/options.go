package repository

import (
	"time"

	"github.com/arnold/memories-api/internal/cache"
	"github.com/arnold/memories-api/internal/config"
	"github.com/arnold/memories-api/internal/retry"
)

type MemoryOptions struct {
	DefaultLimit int
	ChunkSize    int
	ReadRetry    retry.Executor
	ChunkRetry   retry.Executor
	WriteRetry   retry.Executor
}

func DefaultMemoryOptions() MemoryOptions {
	return MemoryOptions{
		DefaultLimit: 100,
		ChunkSize:    5,
		ReadRetry:    retry.Executor{Name: "memory_read", MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		ChunkRetry:   retry.Executor{Name: "memory_chunk", MaxAttempts: 2, InitialDelay: 200 * time.Millisecond},
		WriteRetry:   retry.Executor{Name: "memory_write", MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
	}
}

func MemoryOptionsFromConfig(cfg *config.Config) MemoryOptions {
	opts := DefaultMemoryOptions()
	if cfg.Fetch.DefaultLimit > 0 {
		opts.DefaultLimit = cfg.Fetch.DefaultLimit
	}
	if cfg.Fetch.ChunkSize > 0 {
		opts.ChunkSize = cfg.Fetch.ChunkSize
	}
	if cfg.Retry.ReadAttempts > 0 {
		opts.ReadRetry.MaxAttempts = cfg.Retry.ReadAttempts
	}
	if cfg.Retry.ChunkAttempts > 0 {
		opts.ChunkRetry.MaxAttempts = cfg.Retry.ChunkAttempts
	}
	if cfg.Retry.WriteAttempts > 0 {
		opts.WriteRetry.MaxAttempts = cfg.Retry.WriteAttempts
	}
	opts.ReadRetry.InitialDelay = cfg.Retry.InitialDelay
	opts.ChunkRetry.InitialDelay = cfg.Retry.InitialDelay
	opts.WriteRetry.InitialDelay = cfg.Retry.InitialDelay
	return opts
}

type BoardOptions struct {
	CacheTTL   time.Duration
	ReadRetry  retry.Executor
	WriteRetry retry.Executor
}

func DefaultBoardOptions() BoardOptions {
	return BoardOptions{
		CacheTTL:   cache.TTLBoards,
		ReadRetry:  retry.Executor{Name: "board_read", MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		WriteRetry: retry.Executor{Name: "board_write", MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
	}
}

func BoardOptionsFromConfig(cfg *config.Config) BoardOptions {
	opts := DefaultBoardOptions()
	if cfg.BoardCacheTTL > 0 {
		opts.CacheTTL = cfg.BoardCacheTTL
	}
	if cfg.Retry.ReadAttempts > 0 {
		opts.ReadRetry.MaxAttempts = cfg.Retry.ReadAttempts
	}
	if cfg.Retry.WriteAttempts > 0 {
		opts.WriteRetry.MaxAttempts = cfg.Retry.WriteAttempts
	}
	opts.ReadRetry.InitialDelay = cfg.Retry.InitialDelay
	opts.WriteRetry.InitialDelay = cfg.Retry.InitialDelay
	return opts
}
