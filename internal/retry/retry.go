// Package retry runs remote operations with bounded attempts, exponential
// backoff and cooperative cancellation.
package retry

import (
	"context"
	"time"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/metrics"
)

// Executor describes one call site's retry budget. The zero value makes a
// single attempt.
type Executor struct {
	// Name labels metrics and log lines.
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	// Retryable decides whether a failure may be retried. Defaults to
	// common.IsRetryable.
	Retryable func(error) bool
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Once is an executor for operations that are unsafe to repeat.
func Once(name string) Executor {
	return Executor{Name: name, MaxAttempts: 1}
}

// Do runs op until it succeeds, fails terminally, the attempts run out, or
// ctx is done. Cancellation is reported as common.TypeAborted.
func Do[T any](ctx context.Context, e Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := e.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := e.Retryable
	if retryable == nil {
		retryable = common.IsRetryable
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = wait
	}
	log := logger.Component("retry")

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, common.Aborted(err)
		}

		metrics.RetryAttempts.WithLabelValues(e.Name).Inc()
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, common.Aborted(ctxErr)
		}

		lastErr = err
		if !retryable(err) {
			return zero, common.Classify(err)
		}
		if attempt == attempts {
			break
		}

		delay := Backoff(e.InitialDelay, attempt)
		log.Debug().
			Str("executor", e.Name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("retrying after transient failure")

		if err := sleep(ctx, delay); err != nil {
			return zero, common.Aborted(err)
		}
		if err := ctx.Err(); err != nil {
			return zero, common.Aborted(err)
		}
	}

	metrics.RetryExhausted.WithLabelValues(e.Name).Inc()
	return zero, common.Classify(lastErr)
}

// Backoff returns initial * 2^(attempt-1).
func Backoff(initial time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return initial * time.Duration(1<<(attempt-1))
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
