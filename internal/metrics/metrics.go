// Package metrics exposes check results as Prometheus metrics and reports
// process and host resource usage.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/apimonitor/internal/domain"
)

const namespace = "apimonitor"

// Metrics implements scheduler.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	checks       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	incidents    *prometheus.CounterVec
	responseTime *prometheus.HistogramVec
	skipped      *prometheus.CounterVec
	up           *prometheus.GaugeVec
}

// New registers the monitor metrics plus the Go and process collectors on a
// private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Checks executed, by target and result.",
		}, []string{"target", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_failures_total",
			Help:      "Failed checks, by target and failure reason.",
		}, []string{"target", "reason"}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_total",
			Help:      "Transitions to DOWN, by target.",
		}, []string{"target"}),
		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_time_seconds",
			Help:      "Latency of successful checks.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"target"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_skipped_total",
			Help:      "Scheduled checks skipped because the previous one was still running.",
		}, []string{"target"}),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_up",
			Help:      "1 when the target is UP, 0 when DOWN, -1 when UNKNOWN.",
		}, []string{"target"}),
	}
	reg.MustRegister(
		m.checks, m.failures, m.incidents, m.responseTime, m.skipped, m.up,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func label(t domain.Target) string {
	if t.Name != "" {
		return t.Name
	}
	return string(t.ID)
}

func (m *Metrics) ObserveOutcome(t domain.Target, o domain.CheckOutcome) {
	name := label(t)
	if o.Success {
		m.checks.WithLabelValues(name, "success").Inc()
		m.responseTime.WithLabelValues(name).Observe(o.Latency().Seconds())
		return
	}
	m.checks.WithLabelValues(name, "failure").Inc()
	m.failures.WithLabelValues(name, string(o.Reason)).Inc()
}

func (m *Metrics) ObserveTransition(t domain.Target, ev domain.TransitionEvent) {
	if ev.To == domain.StatusDown {
		m.incidents.WithLabelValues(label(t)).Inc()
	}
	m.SetStatus(t, ev.To)
}

func (m *Metrics) ObserveSkip(t domain.Target) {
	m.skipped.WithLabelValues(label(t)).Inc()
}

// Forget drops the per-target gauge of a removed target. Counters are kept
// so rates stay continuous.
func (m *Metrics) Forget(t domain.Target) {
	m.up.DeleteLabelValues(label(t))
}

// SetStatus sets the target_up gauge: 1 up, 0 down, -1 unknown. It also
// seeds targets loaded with a persisted state.
func (m *Metrics) SetStatus(t domain.Target, st domain.Status) {
	v := -1.0
	switch st {
	case domain.StatusUp:
		v = 1
	case domain.StatusDown:
		v = 0
	}
	m.up.WithLabelValues(label(t)).Set(v)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
