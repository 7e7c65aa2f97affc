// Package cache implements the staleness-aware read cache sitting in
// front of read-heavy aggregate queries. A stale entry is served
// immediately and revalidated in the background; a consumer is never
// blocked by staleness.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/defterlab/defter/internal/metrics"
)

// Entry is a cached value plus the instant it was fetched.
type Entry struct {
	Data      any       `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Store is the backing key-value layer. The in-flight refresh flags are
// always process-local regardless of the store.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Fetcher loads the true current value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Options control staleness per key.
type Options struct {
	// TTL is the freshness window: an entry older than TTL is stale.
	TTL time.Duration
	// RefreshInterval is the minimum spacing between background
	// refresh attempts for one key.
	RefreshInterval time.Duration
}

// Result is a cache read outcome.
type Result struct {
	Data  any
	Stale bool
}

// Cache is the staleness-aware cache service. Create one at application
// start and Close it at shutdown; Close waits for in-flight refreshes.
type Cache struct {
	store    Store
	defaults Options
	log      *slog.Logger

	mu          sync.Mutex
	inflight    map[string]struct{}
	lastAttempt map[string]time.Time

	now func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a cache over the given store.
func New(store Store, defaults Options) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		store:       store,
		defaults:    defaults,
		log:         slog.Default(),
		inflight:    make(map[string]struct{}),
		lastAttempt: make(map[string]time.Time),
		now:         time.Now,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// SetClock overrides the time source. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Cache) clock() time.Time {
	c.mu.Lock()
	now := c.now
	c.mu.Unlock()
	return now()
}

// Get returns the cached value for key, fetching synchronously on a
// miss. A stale hit is returned immediately and triggers at most one
// background refresh for the key.
func (c *Cache) Get(ctx context.Context, key string, fetch Fetcher, opts Options) (Result, error) {
	if opts.TTL <= 0 {
		opts.TTL = c.defaults.TTL
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = c.defaults.RefreshInterval
	}

	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// A broken store degrades to a miss; the fetch below is the
		// source of truth.
		c.log.Warn("cache store read failed", "key", key, "error", err)
		ok = false
	}

	if ok {
		stale := c.clock().Sub(e.FetchedAt) > opts.TTL
		if stale {
			metrics.CacheRequestsTotal.WithLabelValues("stale").Inc()
			c.refresh(key, fetch, opts)
		} else {
			metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
		}
		return Result{Data: e.Data, Stale: stale}, nil
	}

	metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()

	data, err := fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	entry := Entry{Data: data, FetchedAt: c.clock()}
	if err := c.store.Set(ctx, key, entry); err != nil {
		c.log.Warn("cache store write failed", "key", key, "error", err)
	}
	return Result{Data: data, Stale: false}, nil
}

// refresh kicks off a background revalidation unless one is already in
// flight for the key or the last attempt is too recent.
func (c *Cache) refresh(key string, fetch Fetcher, opts Options) {
	now := c.clock()

	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return
	}
	if last, ok := c.lastAttempt[key]; ok && now.Sub(last) < opts.RefreshInterval {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = struct{}{}
	c.lastAttempt[key] = now
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
		}()

		metrics.CacheRefreshesTotal.Inc()

		ctx, cancel := context.WithTimeout(c.baseCtx, 30*time.Second)
		defer cancel()

		data, err := fetch(ctx)
		if err != nil {
			// Keep serving the stale value; the next stale read
			// will attempt again after RefreshInterval.
			c.log.Warn("cache refresh failed", "key", key, "error", err)
			return
		}
		if err := c.store.Set(ctx, key, Entry{Data: data, FetchedAt: c.clock()}); err != nil {
			c.log.Warn("cache store write failed", "key", key, "error", err)
		}
	}()
}

// Invalidate removes a key, forcing the next Get to fetch synchronously.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.lastAttempt, key)
	c.mu.Unlock()
	return c.store.Delete(ctx, key)
}

// InvalidatePrefix removes every key with the given prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.lastAttempt {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.lastAttempt, k)
		}
	}
	c.mu.Unlock()
	return c.store.DeleteByPrefix(ctx, prefix)
}

// Close cancels pending refreshes and waits for them to finish. No
// dangling goroutines survive shutdown.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}
