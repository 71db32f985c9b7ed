package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for business registration.
type Metrics struct {
	// Registrations created, by status
	Registrations *prometheus.CounterVec

	// Allocation latency by backend
	AllocateLatency *prometheus.HistogramVec

	// Failed allocations by backend
	AllocationFailures *prometheus.CounterVec

	// Inserts rejected by the control-number unique index. Any non-zero
	// value means the allocator handed out a duplicate.
	ControlNumberConflicts prometheus.Counter

	// Dashboard cache lookups by result ("hit", "miss", "error")
	DashboardCache *prometheus.CounterVec

	// Registration events that failed to publish
	PublishFailures prometheus.Counter
}

// New registers the business metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bizreg_registrations_total",
			Help: "Business records created, by initial status",
		}, []string{"status"}),

		AllocateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizreg_sequence_allocate_duration_seconds",
			Help:    "Duration of control-number sequence allocation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"backend"}),

		AllocationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bizreg_sequence_allocate_failures_total",
			Help: "Sequence allocations that returned an error",
		}, []string{"backend"}),

		ControlNumberConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "bizreg_control_number_conflicts_total",
			Help: "Inserts rejected because the control number already existed",
		}),

		DashboardCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bizreg_dashboard_cache_total",
			Help: "Dashboard cache lookups by result",
		}, []string{"result"}),

		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "bizreg_event_publish_failures_total",
			Help: "Registration events that could not be published",
		}),
	}
}

func (m *Metrics) IncrementRegistration(status string) {
	if m != nil {
		m.Registrations.WithLabelValues(status).Inc()
	}
}

// ObserveAllocate records one allocation attempt.
func (m *Metrics) ObserveAllocate(backend string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.AllocateLatency.WithLabelValues(backend).Observe(d.Seconds())
	if err != nil {
		m.AllocationFailures.WithLabelValues(backend).Inc()
	}
}

func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.ControlNumberConflicts.Inc()
	}
}

func (m *Metrics) IncrementCache(result string) {
	if m != nil {
		m.DashboardCache.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementPublishFailure() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}
