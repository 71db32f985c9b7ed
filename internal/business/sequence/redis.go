package sequence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"bizreg/pkg/platform/sentinel"
)

const defaultKeyPrefix = "bizreg:seq:"

// RedisAllocator keeps year counters as Redis integers. INCR creates a
// missing key at 0 before incrementing, so the first value of a year is 1.
type RedisAllocator struct {
	client    redis.Cmdable
	keyPrefix string
}

// RedisOption configures a RedisAllocator.
type RedisOption func(*RedisAllocator)

// WithKeyPrefix overrides the key namespace, mostly for tests.
func WithKeyPrefix(prefix string) RedisOption {
	return func(a *RedisAllocator) {
		a.keyPrefix = prefix
	}
}

// NewRedis constructs a Redis-backed allocator.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *RedisAllocator {
	a := &RedisAllocator{client: client, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Allocate increments the year's key and returns the new value.
func (a *RedisAllocator) Allocate(ctx context.Context, year int) (int64, error) {
	if err := validateYear(year); err != nil {
		return 0, err
	}
	value, err := a.client.Incr(ctx, a.key(year)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr year counter %d: %w: %w", year, sentinel.ErrUnavailable, err)
	}
	return value, nil
}

func (a *RedisAllocator) key(year int) string {
	return a.keyPrefix + strconv.Itoa(year)
}
