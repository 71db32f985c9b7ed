//go:build integration

package sequence_test

import (
	"context"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"bizreg/internal/business/sequence"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/platform/tx"
	"bizreg/pkg/testutil/containers"
)

type allocator interface {
	Allocate(ctx context.Context, year int) (int64, error)
}

// allocateConcurrently fires n allocations for year and returns the values.
func allocateConcurrently(s *suite.Suite, a allocator, year, n int) []int64 {
	var wg sync.WaitGroup
	var mu sync.Mutex
	values := make([]int64, 0, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := a.Allocate(context.Background(), year)
			s.NoError(err)
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return values
}

func assertDenseUnique(s *suite.Suite, values []int64) {
	seen := make(map[int64]bool, len(values))
	for _, v := range values {
		s.False(seen[v], "duplicate sequence %d", v)
		seen[v] = true
	}
	for i := int64(1); i <= int64(len(values)); i++ {
		s.True(seen[i], "missing sequence %d", i)
	}
}

type PostgresAllocatorSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	allocator *sequence.PostgresAllocator
}

func TestPostgresAllocatorSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAllocatorSuite))
}

func (s *PostgresAllocatorSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.allocator = sequence.NewPostgres(s.postgres.DB)
}

func (s *PostgresAllocatorSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "year_counters"))
}

func (s *PostgresAllocatorSuite) TestFirstValueOfYearIsOne() {
	ctx := context.Background()
	v, err := s.allocator.Allocate(ctx, 2025)
	s.Require().NoError(err)
	s.Equal(int64(1), v)

	v, err = s.allocator.Allocate(ctx, 2025)
	s.Require().NoError(err)
	s.Equal(int64(2), v)

	v, err = s.allocator.Allocate(ctx, 2026)
	s.Require().NoError(err)
	s.Equal(int64(1), v, "years are independent")
}

func (s *PostgresAllocatorSuite) TestConcurrentAllocationIsUnique() {
	values := allocateConcurrently(&s.Suite, s.allocator, 2025, 100)
	assertDenseUnique(&s.Suite, values)
}

func (s *PostgresAllocatorSuite) TestRolledBackAllocationIsReleased() {
	ctx := context.Background()
	runner := tx.NewRunner(s.postgres.DB)
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.allocator.Allocate(ctx, 2025)
		s.Require().NoError(err)
		s.Equal(int64(1), v)
		return sentinel.ErrConflict
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	v, err := s.allocator.Allocate(ctx, 2025)
	s.Require().NoError(err)
	s.Equal(int64(1), v)
}

func (s *PostgresAllocatorSuite) TestRejectsOutOfRangeYear() {
	_, err := s.allocator.Allocate(context.Background(), 10000)
	s.Error(err)
}

type RedisAllocatorSuite struct {
	suite.Suite
	redis     *containers.RedisContainer
	allocator *sequence.RedisAllocator
}

func TestRedisAllocatorSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisAllocatorSuite))
}

func (s *RedisAllocatorSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.allocator = sequence.NewRedis(s.redis.Client, sequence.WithKeyPrefix("test:seq:"))
}

func (s *RedisAllocatorSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisAllocatorSuite) TestCountersArePerYear() {
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		v, err := s.allocator.Allocate(ctx, 2025)
		s.Require().NoError(err)
		s.Equal(want, v)
	}
	v, err := s.allocator.Allocate(ctx, 2024)
	s.Require().NoError(err)
	s.Equal(int64(1), v)

	raw, err := s.redis.Client.Get(ctx, "test:seq:2025").Int64()
	s.Require().NoError(err)
	s.Equal(int64(3), raw)
}

func (s *RedisAllocatorSuite) TestConcurrentAllocationIsUnique() {
	values := allocateConcurrently(&s.Suite, s.allocator, 2025, 200)
	assertDenseUnique(&s.Suite, values)
}

func (s *RedisAllocatorSuite) TestUnavailableServerIsReported() {
	client := sequence.NewRedis(redisClientAt("127.0.0.1:1"))
	_, err := client.Allocate(context.Background(), 2025)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func redisClientAt(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
}
