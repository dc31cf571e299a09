package queue

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the worker's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Dequeued     prometheus.Counter
	Outcomes     *prometheus.CounterVec
	StuckResets  prometheus.Counter
	InFlight     prometheus.Gauge
	PhaseSeconds *prometheus.HistogramVec
	LoopErrors   prometheus.Counter
}

// Job outcome labels
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeReleased  = "released"
)

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Dequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insiderlens_jobs_dequeued_total",
			Help: "Jobs claimed by the worker",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insiderlens_jobs_finished_total",
			Help: "Jobs that left the worker, by outcome",
		}, []string{"outcome"}),
		StuckResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insiderlens_jobs_stuck_reset_total",
			Help: "Processing jobs returned to pending by the stuck-job sweep",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "insiderlens_jobs_in_flight",
			Help: "Jobs currently being processed",
		}),
		PhaseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insiderlens_phase_duration_seconds",
			Help:    "Duration of each pipeline phase",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		LoopErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insiderlens_worker_loop_errors_total",
			Help: "Errors and panics caught by the control loop",
		}),
	}
	m.registry.MustRegister(m.Dequeued, m.Outcomes, m.StuckResets, m.InFlight, m.PhaseSeconds, m.LoopErrors)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) dequeued() {
	if m != nil {
		m.Dequeued.Inc()
		m.InFlight.Inc()
	}
}

func (m *Metrics) finished(outcome string) {
	if m != nil {
		m.InFlight.Dec()
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) stuckReset(n int) {
	if m != nil && n > 0 {
		m.StuckResets.Add(float64(n))
	}
}

func (m *Metrics) loopError() {
	if m != nil {
		m.LoopErrors.Inc()
	}
}

// ObservePhase records how long a pipeline phase took
func (m *Metrics) ObservePhase(phase string, elapsed time.Duration) {
	if m != nil {
		m.PhaseSeconds.WithLabelValues(phase).Observe(elapsed.Seconds())
	}
}
