// Package cache holds the read-through dashboard cache. Cached dashboards may
// be up to one TTL stale; creates invalidate the entry on a best-effort basis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"bizreg/internal/business/analysis"
	"bizreg/internal/business/metrics"
)

const (
	defaultKey = "bizreg:dashboard"
	defaultTTL = 30 * time.Second
)

// Loader computes a fresh dashboard on a miss.
type Loader func(ctx context.Context) (*analysis.Dashboard, error)

// entry is the stored envelope. Year scopes the entry to the calendar year
// it was computed in so a rollover is never served a stale current year.
type entry struct {
	Year      int                 `json:"year"`
	Dashboard *analysis.Dashboard `json:"dashboard"`
}

// RedisDashboardCache stores the dashboard as JSON under a single key.
// Concurrent misses in one process share one load.
type RedisDashboardCache struct {
	client  redis.Cmdable
	key     string
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*RedisDashboardCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisDashboardCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithKey(key string) Option {
	return func(c *RedisDashboardCache) {
		if key != "" {
			c.key = key
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *RedisDashboardCache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *RedisDashboardCache) {
		c.metrics = m
	}
}

func NewRedis(client redis.Cmdable, opts ...Option) *RedisDashboardCache {
	c := &RedisDashboardCache{
		client: client,
		key:    defaultKey,
		ttl:    defaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dashboard returns the cached dashboard for year or computes it with load.
// Redis failures degrade to calling load directly.
func (c *RedisDashboardCache) Dashboard(ctx context.Context, year int, load Loader) (*analysis.Dashboard, error) {
	if d, ok := c.get(ctx, year); ok {
		c.metrics.IncrementCache("hit")
		return d, nil
	}
	c.metrics.IncrementCache("miss")

	// Waiters share one load; it is not bound to the first caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(fmt.Sprintf("%s:%d", c.key, year), func() (any, error) {
		d, err := load(shared)
		if err != nil {
			return nil, err
		}
		c.set(shared, year, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*analysis.Dashboard), nil
}

// Invalidate drops the cached dashboard.
func (c *RedisDashboardCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate dashboard cache: %w", err)
	}
	return nil
}

func (c *RedisDashboardCache) get(ctx context.Context, year int) (*analysis.Dashboard, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.metrics.IncrementCache("error")
			c.logger.WarnContext(ctx, "dashboard cache read failed", "error", err)
		}
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.WarnContext(ctx, "dashboard cache entry corrupt", "error", err)
		return nil, false
	}
	if e.Year != year || e.Dashboard == nil {
		return nil, false
	}
	return e.Dashboard, true
}

func (c *RedisDashboardCache) set(ctx context.Context, year int, d *analysis.Dashboard) {
	raw, err := json.Marshal(entry{Year: year, Dashboard: d})
	if err != nil {
		c.logger.WarnContext(ctx, "dashboard cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		c.metrics.IncrementCache("error")
		c.logger.WarnContext(ctx, "dashboard cache write failed", "error", err)
	}
}

// Nop computes every dashboard and caches nothing.
type Nop struct{}

func (Nop) Dashboard(ctx context.Context, _ int, load Loader) (*analysis.Dashboard, error) {
	return load(ctx)
}

func (Nop) Invalidate(context.Context) error { return nil }
