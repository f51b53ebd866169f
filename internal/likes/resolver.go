// Package likes resolves per-viewer like state independently of the memory
// fetch and toggles likes atomically.
package likes

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/mapper"
	"github.com/arnold/memories-api/internal/metrics"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/retry"
	"github.com/arnold/memories-api/internal/store"
)

// DefaultConcurrency bounds ResolveAll.
const DefaultConcurrency = 8

type Resolver struct {
	store       store.Store
	concurrency int
	log         zerolog.Logger
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{
		store:       s,
		concurrency: DefaultConcurrency,
		log:         logger.Component("likes"),
	}
}

// Resolve returns the like state of one memory for viewerID. It tries the
// aggregate procedure, then the raw like edges, and finally gives up with a
// zero state. It never fails.
func (r *Resolver) Resolve(ctx context.Context, memoryID, viewerID string) models.LikeState {
	row, err := r.store.Call(ctx, store.ProcLikeSummary, store.Row{
		"memory_id": memoryID,
		"viewer_id": viewerID,
	})
	if err == nil {
		metrics.LikeFallbacks.WithLabelValues("aggregate").Inc()
		return mapper.ToLikeState(row)
	}
	if ctx.Err() != nil {
		return models.LikeState{}
	}
	r.log.Debug().Str("memory_id", memoryID).Err(err).Msg("like summary failed, reading edges")

	state, err := r.fromEdges(ctx, memoryID, viewerID)
	if err == nil {
		metrics.LikeFallbacks.WithLabelValues("edges").Inc()
		return state
	}

	metrics.LikeFallbacks.WithLabelValues("default").Inc()
	if !common.IsAborted(err) {
		r.log.Warn().Str("memory_id", memoryID).Err(err).Msg("like state unavailable")
	}
	return models.LikeState{}
}

func (r *Resolver) fromEdges(ctx context.Context, memoryID, viewerID string) (models.LikeState, error) {
	rows, err := r.store.Select(ctx, store.TableLikes, store.Query{
		Filters: []store.Filter{store.Eq("memory_id", memoryID)},
	})
	if err != nil {
		return models.LikeState{}, common.Classify(err)
	}

	state := models.LikeState{Count: len(rows)}
	if viewerID != "" {
		for _, row := range rows {
			if mapper.String(row, "user_id") == viewerID {
				state.ViewerHasLiked = true
				break
			}
		}
	}
	return state, nil
}

// ResolveAll resolves several memories concurrently, keyed by memory id.
func (r *Resolver) ResolveAll(ctx context.Context, memoryIDs []string, viewerID string) map[string]models.LikeState {
	var (
		mu     sync.Mutex
		states = make(map[string]models.LikeState, len(memoryIDs))
	)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, id := range memoryIDs {
		g.Go(func() error {
			state := r.Resolve(ctx, id, viewerID)
			mu.Lock()
			states[id] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return states
}

// Toggle flips viewerID's like in one atomic procedure call and returns the
// state the server settled on. Toggling is not idempotent, so it is never
// retried.
func (r *Resolver) Toggle(ctx context.Context, memoryID, viewerID string) (models.LikeState, error) {
	if viewerID == "" {
		return models.LikeState{}, common.ErrNotAuthenticated
	}
	if memoryID == "" {
		return models.LikeState{}, common.Validation("A memory id is required")
	}

	return retry.Do(ctx, retry.Once("like_toggle"), func(ctx context.Context) (models.LikeState, error) {
		row, err := r.store.Call(ctx, store.ProcToggleLike, store.Row{
			"memory_id": memoryID,
			"viewer_id": viewerID,
		})
		if err != nil {
			return models.LikeState{}, err
		}
		return mapper.ToLikeState(row), nil
	})
}

// Optimistic is the state to show while a toggle is in flight.
func Optimistic(current models.LikeState) models.LikeState {
	next := models.LikeState{ViewerHasLiked: !current.ViewerHasLiked, Count: current.Count}
	if next.ViewerHasLiked {
		next.Count++
	} else if next.Count > 0 {
		next.Count--
	}
	return next
}

// Reconcile replaces an optimistic guess with the server's answer.
func Reconcile(_ models.LikeState, server models.LikeState) models.LikeState {
	return server
}
