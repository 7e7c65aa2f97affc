package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/metrics"
)

// OpClass groups storage operations for rate budgeting.
type OpClass string

const (
	ClassRead   OpClass = "read"
	ClassWrite  OpClass = "write"
	ClassDelete OpClass = "delete"
	ClassHeavy  OpClass = "heavy"
)

// OverflowPolicy decides what happens to an admission that would exceed
// the window budget.
type OverflowPolicy string

const (
	// PolicyReject returns a retryable RateLimitExceeded error, so a
	// retry layer above naturally backs off into a later window.
	PolicyReject OverflowPolicy = "reject"
	// PolicyQueue blocks until the next window boundary.
	PolicyQueue OverflowPolicy = "queue"
)

// LimiterConfig holds per-class budgets per fixed window.
type LimiterConfig struct {
	Read   int
	Write  int
	Delete int
	Heavy  int
	Window time.Duration
	Policy OverflowPolicy
}

// DefaultLimiterConfig provides the per-second defaults.
var DefaultLimiterConfig = LimiterConfig{
	Read:   100,
	Write:  30,
	Delete: 10,
	Heavy:  5,
	Window: 1 * time.Second,
	Policy: PolicyReject,
}

type classBudget struct {
	limit       int
	remaining   int
	windowStart time.Time
}

// Limiter gates operations by class with a fixed-window counter per
// class, refilled at each window boundary. Counters for independent
// classes never interact.
type Limiter struct {
	mu      sync.Mutex
	budgets map[OpClass]*classBudget
	window  time.Duration
	policy  OverflowPolicy
	now     func() time.Time
}

// NewLimiter creates a limiter from config, falling back to defaults for
// unset fields.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultLimiterConfig.Window
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	pick := func(v, def int) int {
		if v <= 0 {
			return def
		}
		return v
	}

	l := &Limiter{
		budgets: map[OpClass]*classBudget{
			ClassRead:   {limit: pick(cfg.Read, DefaultLimiterConfig.Read)},
			ClassWrite:  {limit: pick(cfg.Write, DefaultLimiterConfig.Write)},
			ClassDelete: {limit: pick(cfg.Delete, DefaultLimiterConfig.Delete)},
			ClassHeavy:  {limit: pick(cfg.Heavy, DefaultLimiterConfig.Heavy)},
		},
		window: cfg.Window,
		policy: cfg.Policy,
	}
	for _, b := range l.budgets {
		b.remaining = b.limit
	}
	return l
}

// SetClock overrides the time source. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func (l *Limiter) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

// Admit consumes one token for the class. Under PolicyReject an exhausted
// budget yields a retryable RateLimitExceeded; under PolicyQueue the call
// sleeps to the next window boundary and tries again, honoring ctx.
func (l *Limiter) Admit(ctx context.Context, class OpClass) error {
	for {
		ok, wait, err := l.tryAdmit(class)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		metrics.RateLimitRejectionsTotal.WithLabelValues(string(class)).Inc()

		if l.policy == PolicyReject {
			return domain.NewClassified(domain.KindRateLimitExceeded, true,
				fmt.Errorf("%s budget exhausted for current window", class))
		}

		select {
		case <-ctx.Done():
			return Classify(ctx.Err())
		case <-time.After(wait):
		}
	}
}

// tryAdmit reports (admitted, time until the window refills, error).
func (l *Limiter) tryAdmit(class OpClass) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[class]
	if !ok {
		return false, 0, domain.NewValidationError(fmt.Errorf("unknown operation class %q", class))
	}

	now := l.clock()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= l.window {
		b.windowStart = now
		b.remaining = b.limit
	}

	if b.remaining > 0 {
		b.remaining--
		return true, 0, nil
	}

	wait := l.window - now.Sub(b.windowStart)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait, nil
}

// Remaining returns the tokens left for a class in the current window.
func (l *Limiter) Remaining(class OpClass) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[class]
	if !ok {
		return 0
	}
	now := l.clock()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= l.window {
		return b.limit
	}
	return b.remaining
}
