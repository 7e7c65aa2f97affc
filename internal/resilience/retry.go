package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/metrics"
)

// RetryConfig defines retry behavior. Total attempts = MaxRetries + 1.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// ShouldRetry overrides the classified retryable flag when set.
	ShouldRetry func(err *domain.ClassifiedError) bool
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     10 * time.Second,
}

// Retry executes op with exponential backoff. On failure the error is
// classified; non-retryable errors propagate immediately, retryable ones
// are reattempted after a delay that doubles up to MaxDelay. The final
// error is always the classified form of the last failure. The backoff
// sleep is a timer select honoring ctx, never a busy wait.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	delay := cfg.InitialDelay
	if delay <= 0 {
		delay = DefaultRetryConfig.InitialDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultRetryConfig.MaxDelay
	}

	var lastErr *domain.ClassifiedError
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RetryAttemptsTotal.Inc()
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		// NotFound is a result, not a failure: pass through unclassified.
		if errors.Is(err, domain.ErrNotFound) {
			return zero, err
		}

		lastErr = Classify(err)

		retryable := lastErr.Retryable
		if cfg.ShouldRetry != nil {
			retryable = cfg.ShouldRetry(lastErr)
		}
		if !retryable || attempt == cfg.MaxRetries {
			return zero, lastErr
		}

		select {
		case <-ctx.Done():
			return zero, Classify(ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return zero, lastErr
}

// RetryVoid is Retry for operations without a result value.
func RetryVoid(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
