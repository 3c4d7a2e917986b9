// Package metrics exposes Prometheus collectors for the automation loop and
// the control API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrhq/farmrunner/pkg/automation"
)

const namespace = "farmrunner"

// Metrics holds all Prometheus collectors. It implements automation.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// Loop metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	Running       prometheus.Gauge
	NextRun       prometheus.Gauge

	// API metrics
	RequestsTotal *prometheus.CounterVec
}

// New registers collectors on a private registry. sessions, when non-nil,
// backs the active browser session gauge.
func New(sessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Automation cycles by outcome.",
			},
			[]string{"outcome"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of one automation cycle.",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120, 180},
			},
		),
		Running: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "running",
				Help:      "1 while the automation loop is started.",
			},
		),
		NextRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "next_run_timestamp_seconds",
				Help:      "Unix time of the next scheduled cycle, 0 when none.",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Control API requests by route and status code.",
			},
			[]string{"route", "code"},
		),
	}

	if sessions != nil {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "browser_sessions_active",
				Help:      "Browser sessions currently open.",
			},
			func() float64 { return float64(sessions()) },
		)
	}

	return m
}

// CycleFinished records the outcome and duration of a cycle.
func (m *Metrics) CycleFinished(outcome automation.Outcome, duration time.Duration) {
	m.CyclesTotal.WithLabelValues(string(outcome)).Inc()
	m.CycleDuration.Observe(duration.Seconds())
}

// RunningChanged tracks the loop state.
func (m *Metrics) RunningChanged(running bool) {
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}

// NextRunScheduled tracks the pending cycle; the zero time clears it.
func (m *Metrics) NextRunScheduled(at time.Time) {
	if at.IsZero() {
		m.NextRun.Set(0)
		return
	}
	m.NextRun.Set(float64(at.UnixMilli()) / 1000)
}

// ObserveRequest counts one API request.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ automation.Observer = (*Metrics)(nil)
