package sequence

import (
	"context"
	"sync"
)

// InMemory keeps year counters in process memory. It is only correct for a
// single process and backs tests and local development.
type InMemory struct {
	mu       sync.Mutex
	counters map[int]int64
}

func NewInMemory() *InMemory {
	return &InMemory{counters: make(map[int]int64)}
}

// Allocate increments the counter for year and returns the new value.
func (m *InMemory) Allocate(ctx context.Context, year int) (int64, error) {
	if err := validateYear(year); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[year]++
	return m.counters[year], nil
}

// Current returns the last value issued for year, 0 if none.
func (m *InMemory) Current(year int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[year]
}
