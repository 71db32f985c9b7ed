package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementRegistration("complete")
	m.IncrementRegistration("complete")
	m.ObserveAllocate("postgres", time.Millisecond, nil)
	m.ObserveAllocate("postgres", time.Millisecond, errors.New("down"))
	m.IncrementConflict()
	m.IncrementCache("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AllocationFailures.WithLabelValues("postgres")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ControlNumberConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DashboardCache.WithLabelValues("hit")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRegistration("complete")
		m.ObserveAllocate("memory", time.Millisecond, errors.New("x"))
		m.IncrementConflict()
		m.IncrementCache("miss")
		m.IncrementPublishFailure()
	})
}
