package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Armin-kho/price-snapshot-bot/internal/metrics"
)

const (
	defaultCacheTTL = 300 * time.Second
	refreshKey      = "bonbast"
)

type cacheEntry struct {
	snapshot   RateSnapshot
	capturedAt time.Time
}

// Cache serves the last successfully extracted RateSnapshot for TTL and coalesces
// refreshes so that at most one capture cycle runs at a time.
type Cache struct {
	capturer Capturer
	fetcher  Fetcher
	ttl      time.Duration
	budget   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics

	entry atomic.Pointer[cacheEntry]
	sf    singleflight.Group
}

type CacheOption func(*Cache)

func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRefreshBudget bounds one refresh cycle (capture plus fetch).
func WithRefreshBudget(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.budget = d
		}
	}
}

func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

func NewCache(capturer Capturer, fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		capturer: capturer,
		fetcher:  fetcher,
		ttl:      defaultCacheTTL,
		budget:   defaultCaptureTimeout + bonbastFetchTimeout,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) fresh(e *cacheEntry) bool {
	return e != nil && c.now().Sub(e.capturedAt) < c.ttl
}

// Snapshot returns the cached snapshot while it is fresh, otherwise refreshes it.
// force skips the freshness check. Concurrent callers share one refresh; a caller
// whose ctx ends stops waiting but does not cancel the refresh. A failed refresh
// keeps the previous entry and returns the error.
func (c *Cache) Snapshot(ctx context.Context, force bool) (RateSnapshot, error) {
	if e := c.entry.Load(); !force && c.fresh(e) {
		c.metrics.CacheResult("hit")
		return e.snapshot, nil
	}

	ch := c.sf.DoChan(refreshKey, func() (any, error) {
		// Another flight may have refreshed while this caller was deciding.
		if e := c.entry.Load(); !force && c.fresh(e) {
			return e, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.budget)
		defer cancel()
		return c.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return RateSnapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.metrics.CacheResult("error")
			return RateSnapshot{}, res.Err
		}
		if res.Shared {
			c.metrics.CacheResult("shared")
		}
		return res.Val.(*cacheEntry).snapshot, nil
	}
}

func (c *Cache) refresh(ctx context.Context) (*cacheEntry, error) {
	start := c.now()
	session, err := c.capturer.Capture(ctx)
	if err != nil {
		c.logger.Warn("rate refresh: capture failed", "err", err)
		return nil, fmt.Errorf("capture: %w", err)
	}
	raw, err := c.fetcher.Fetch(ctx, session)
	if err != nil {
		c.logger.Warn("rate refresh: fetch failed", "err", err)
		return nil, fmt.Errorf("fetch: %w", err)
	}
	snap := Extract(raw)

	e := &cacheEntry{snapshot: snap, capturedAt: c.now()}
	c.entry.Store(e)
	c.metrics.CacheResult("refresh")
	c.logger.Info("rate snapshot refreshed",
		"currencies", len(snap.Currencies),
		"coins", len(snap.Coins),
		"gold", len(snap.Gold),
		"created", snap.Created,
		"elapsed", c.now().Sub(start),
	)
	return e, nil
}

// Peek returns the last stored snapshot regardless of age.
func (c *Cache) Peek() (RateSnapshot, time.Time, bool) {
	e := c.entry.Load()
	if e == nil {
		return RateSnapshot{}, time.Time{}, false
	}
	return e.snapshot, e.capturedAt, true
}
