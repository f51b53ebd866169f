package fanout

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arnold/memories-api/internal/common"
)

func TestChunk(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}

	chunks := Chunk(items, 3)

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e", "f"}, {"g"}}, chunks)
}

func TestChunk_EdgeCases(t *testing.T) {
	assert.Empty(t, Chunk([]int{}, 5))
	assert.Equal(t, [][]int{{1, 2}}, Chunk([]int{1, 2}, 5))
	assert.Equal(t, [][]int{{1}, {2}}, Chunk([]int{1, 2}, 0))
}

func TestChunk_AppendDoesNotClobberNeighbour(t *testing.T) {
	items := []int{1, 2, 3, 4}
	chunks := Chunk(items, 2)

	_ = append(chunks[0], 99)

	assert.Equal(t, []int{3, 4}, chunks[1])
}

func TestRun_MergesAllChunks(t *testing.T) {
	codes := []string{"A", "B", "C", "D", "E", "F"}

	got := Run(context.Background(), codes, 2, func(ctx context.Context, chunk []string) ([]string, error) {
		out := make([]string, len(chunk))
		for i, c := range chunk {
			out[i] = c + "1"
		}
		return out, nil
	})

	sort.Strings(got)
	assert.Equal(t, []string{"A1", "B1", "C1", "D1", "E1", "F1"}, got)
}

func TestRun_FailedChunkContributesNothing(t *testing.T) {
	codes := []string{"OK1", "BAD", "OK2"}

	got := Run(context.Background(), codes, 1, func(ctx context.Context, chunk []string) ([]string, error) {
		if chunk[0] == "BAD" {
			return nil, errors.New("boom")
		}
		return chunk, nil
	})

	sort.Strings(got)
	assert.Equal(t, []string{"OK1", "OK2"}, got)
}

func TestRun_AbortedChunkDoesNotFailOthers(t *testing.T) {
	got := Run(context.Background(), []int{1, 2}, 1, func(ctx context.Context, chunk []int) ([]int, error) {
		if chunk[0] == 1 {
			return nil, common.Aborted(context.Canceled)
		}
		return chunk, nil
	})

	assert.Equal(t, []int{2}, got)
}

func TestRun_ChunksRunConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})

	go func() {
		deadline := time.After(2 * time.Second)
		for peak.Load() < 3 {
			select {
			case <-deadline:
				close(release)
				return
			default:
				time.Sleep(time.Millisecond)
			}
		}
		close(release)
	}()

	Run(context.Background(), []int{1, 2, 3}, 1, func(ctx context.Context, chunk []int) ([]int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return chunk, nil
	})

	assert.Equal(t, int32(3), peak.Load())
}
