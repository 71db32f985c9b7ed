package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest("GET", "/api/businesses/{id}", "2xx", 0.01)
	m.ObserveRequest("GET", "/api/businesses/{id}", "4xx", 0.02)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/businesses/{id}", "2xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration, "bizreg_http_request_duration_seconds"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveRequest("GET", "/", "2xx", 0) })
}
