// Package fanout splits partition keys into bounded chunks and runs them
// concurrently, keeping whatever succeeds.
package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/metrics"
)

// Worker processes one chunk of keys.
type Worker[K, R any] func(ctx context.Context, chunk []K) ([]R, error)

// Chunk splits items into contiguous groups of at most size elements.
func Chunk[K any](items []K, size int) [][]K {
	if size < 1 {
		size = 1
	}
	chunks := make([][]K, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// Run issues every chunk concurrently and concatenates the results in
// completion order. A chunk that fails contributes nothing; Run itself
// never fails. Callers needing a stable order must sort the result.
func Run[K, R any](ctx context.Context, items []K, size int, worker Worker[K, R]) []R {
	log := logger.Component("fanout")

	var (
		mu     sync.Mutex
		merged []R
	)

	// A plain Group: one failing chunk must not cancel its siblings.
	var g errgroup.Group
	for i, chunk := range Chunk(items, size) {
		g.Go(func() error {
			results, err := worker(ctx, chunk)
			if err != nil {
				outcome := "failed"
				if common.IsAborted(err) {
					outcome = "aborted"
				}
				metrics.FanoutChunks.WithLabelValues(outcome).Inc()
				log.Warn().
					Int("chunk", i).
					Int("size", len(chunk)).
					Err(err).
					Msg("chunk failed, continuing with partial results")
				return nil
			}

			metrics.FanoutChunks.WithLabelValues("ok").Inc()
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return merged
}
