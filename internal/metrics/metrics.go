// Package metrics provides Prometheus metrics for the blink daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blinker"

// Metrics holds the daemon's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	started     *prometheus.CounterVec
	completed   *prometheus.CounterVec
	stopped     prometheus.Counter
	rejected    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	active      prometheus.Gauge
}

// New registers all collectors on a fresh registry, plus the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		started: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_started_total",
			Help:      "Blink sequences started",
		}, []string{"kind"}),
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_completed_total",
			Help:      "Blink sequences that ran to completion",
		}, []string{"kind"}),
		stopped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_stopped_total",
			Help:      "Blink sequences stopped or replaced before completion",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Remote requests rejected before reaching the machine",
		}, []string{"reason"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_transitions_total",
			Help:      "Indicator changes of state, by new state",
		}, []string{"state"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequence_active",
			Help:      "1 while a sequence is running",
		}),
	}
}

// SequenceStarted counts a start and marks a sequence active.
func (m *Metrics) SequenceStarted(kind string) {
	m.started.WithLabelValues(kind).Inc()
	m.active.Set(1)
}

// SequenceCompleted counts a natural completion.
func (m *Metrics) SequenceCompleted(kind string) {
	m.completed.WithLabelValues(kind).Inc()
	m.active.Set(0)
}

// SequenceStopped counts an early stop.
func (m *Metrics) SequenceStopped() {
	m.stopped.Inc()
	m.active.Set(0)
}

// RequestRejected counts a rejected request by reason.
func (m *Metrics) RequestRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// IndicatorChanged counts a change of indicator state.
func (m *Metrics) IndicatorChanged(on bool) {
	state := "off"
	if on {
		state = "on"
	}
	m.transitions.WithLabelValues(state).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
