package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcilerMetrics records the outcome of webhook reconciliation passes.
type ReconcilerMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// NewReconcilerMetrics registers the reconciler metrics on the provided registerer.
func NewReconcilerMetrics(reg prometheus.Registerer) *ReconcilerMetrics {
	if reg == nil {
		return &ReconcilerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciler_pass_duration_seconds",
		Help:    "Duration of reconciliation passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_pass_success",
		Help: "Successful reconciliation passes.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_pass_failure",
		Help: "Failed reconciliation passes.",
	}, []string{"job"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_events_total",
		Help: "Webhook events processed, labelled by resulting status.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, success, failure, events)
	return &ReconcilerMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		events:   events,
	}
}

// ObserveDuration records the duration of one pass for the named job.
func (r *ReconcilerMetrics) ObserveDuration(job string, duration time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	r.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (r *ReconcilerMetrics) IncSuccess(job string) {
	if r == nil || r.success == nil {
		return
	}
	r.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (r *ReconcilerMetrics) IncFailure(job string) {
	if r == nil || r.failure == nil {
		return
	}
	r.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncEvent increments the processed-event counter for the given outcome.
func (r *ReconcilerMetrics) IncEvent(job, outcome string) {
	if r == nil || r.events == nil {
		return
	}
	r.events.WithLabelValues(normalizeLabel(job), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
