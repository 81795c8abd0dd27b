package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the sync pipeline.
type Metrics struct {
	// Poll cycles by outcome: "staged", "empty", "failed"
	Polls *prometheus.CounterVec

	// Change records written to staging
	Staged prometheus.Counter

	// Registrations by outcome: "registered", "failed", "remove_failed"
	Registrations *prometheus.CounterVec

	// Last committed history marker per tenant
	Cursor *prometheus.GaugeVec

	// Phase latency by phase: "poll", "register"
	PhaseLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the pipeline metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentsync_polls_total",
			Help: "Poll cycles by outcome",
		}, []string{"outcome"}),

		Staged: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentsync_staged_records_total",
			Help: "Change records written to staging",
		}),

		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentsync_registrations_total",
			Help: "Downstream consent registrations by outcome",
		}, []string{"outcome"}),

		Cursor: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "consentsync_history_cursor",
			Help: "Last committed history marker per tenant",
		}, []string{"tenant"}),

		PhaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentsync_phase_duration_seconds",
			Help:    "Duration of pipeline phases",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
	}
}

// IncrementPoll records a poll outcome.
func (m *Metrics) IncrementPoll(outcome string) {
	if m != nil {
		m.Polls.WithLabelValues(outcome).Inc()
	}
}

// AddStaged counts staged records.
func (m *Metrics) AddStaged(n int) {
	if m != nil {
		m.Staged.Add(float64(n))
	}
}

// IncrementRegistration records one registration outcome.
func (m *Metrics) IncrementRegistration(outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(outcome).Inc()
	}
}

// SetCursor records the committed marker for a tenant.
func (m *Metrics) SetCursor(tenantID string, cursor int64) {
	if m != nil {
		m.Cursor.WithLabelValues(tenantID).Set(float64(cursor))
	}
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m != nil {
		m.PhaseLatency.WithLabelValues(phase).Observe(d.Seconds())
	}
}
