package resilience

import (
	"context"
	"errors"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/metrics"
)

// Guard composes the limiter and the retry executor in front of storage
// calls: the admission check runs inside the retry loop, so a rejected
// admission (retryable) backs off into a later window like any other
// transient failure.
type Guard struct {
	limiter *Limiter
	retry   RetryConfig
}

// NewGuard builds a guard over a shared limiter.
func NewGuard(limiter *Limiter, retry RetryConfig) *Guard {
	return &Guard{limiter: limiter, retry: retry}
}

// Do runs op under the class budget with retries.
func (g *Guard) Do(ctx context.Context, class OpClass, op func(ctx context.Context) error) error {
	err := RetryVoid(ctx, g.retry, func(ctx context.Context) error {
		if err := g.limiter.Admit(ctx, class); err != nil {
			return err
		}
		return op(ctx)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		if ce := Classify(err); ce != nil {
			metrics.StorageErrorsTotal.WithLabelValues(string(ce.Kind)).Inc()
		}
	}
	return err
}

// Limiter exposes the underlying limiter (for introspection endpoints).
func (g *Guard) Limiter() *Limiter { return g.limiter }
