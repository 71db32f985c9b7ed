package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizreg/internal/business/analysis"
)

func countingLoader(calls *atomic.Int32, d *analysis.Dashboard, err error) Loader {
	return func(context.Context) (*analysis.Dashboard, error) {
		calls.Add(1)
		return d, err
	}
}

func TestNopAlwaysLoads(t *testing.T) {
	var calls atomic.Int32
	want := &analysis.Dashboard{TotalBusinesses: 3}

	for range 2 {
		got, err := Nop{}.Dashboard(context.Background(), 2025, countingLoader(&calls, want, nil))
		require.NoError(t, err)
		assert.Same(t, want, got)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.NoError(t, Nop{}.Invalidate(context.Background()))
}

// unreachable points at a port nothing listens on.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
}

func TestRedisFailureFallsBackToLoader(t *testing.T) {
	client := unreachable()
	defer client.Close()
	c := NewRedis(client, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	var calls atomic.Int32
	want := &analysis.Dashboard{TotalBusinesses: 7}
	got, err := c.Dashboard(context.Background(), 2025, countingLoader(&calls, want, nil))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), calls.Load())

	assert.Error(t, c.Invalidate(context.Background()))
}

func TestLoaderErrorIsReturned(t *testing.T) {
	client := unreachable()
	defer client.Close()
	c := NewRedis(client, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	boom := errors.New("store down")
	var calls atomic.Int32
	_, err := c.Dashboard(context.Background(), 2025, countingLoader(&calls, nil, boom))
	assert.ErrorIs(t, err, boom)
}

func TestSharedLoadOutlivesCallerCancellation(t *testing.T) {
	client := unreachable()
	defer client.Close()
	c := NewRedis(client, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), loaderKey{}, "req-1"))
	cancel()

	want := &analysis.Dashboard{TotalBusinesses: 2}
	got, err := c.Dashboard(ctx, 2025, func(ctx context.Context) (*analysis.Dashboard, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assert.Equal(t, "req-1", ctx.Value(loaderKey{}))
		return want, nil
	})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

type loaderKey struct{}
