// metrics.go
package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the controller's counters and gauges on /metrics.
// A private registry keeps registration idempotent across tests.
type Metrics struct {
	registry *prometheus.Registry

	burnsTotal     prometheus.Counter
	abortsTotal    prometheus.Counter
	failSafesTotal prometheus.Counter
	pollFailures   prometheus.Counter
	commandsTotal  prometheus.Counter

	temperature   prometheus.Gauge
	satFraction   prometheus.Gauge
	fieldFraction prometheus.Gauge
	rateEstimate  prometheus.Gauge
	stateGauge    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.burnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reactor_burns_total",
		Help: "Total discharge burns started.",
	})
	m.abortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reactor_burn_aborts_total",
		Help: "Total burns aborted by the watchdog or lost telemetry.",
	})
	m.failSafesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reactor_failsafes_total",
		Help: "Total fail-safe shutdowns triggered.",
	})
	m.pollFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reactor_poll_failures_total",
		Help: "Total telemetry polls that returned no fresh snapshot.",
	})
	m.commandsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reactor_actuator_commands_total",
		Help: "Total actuator writes issued.",
	})
	m.temperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_temperature",
		Help: "Last observed reactor temperature.",
	})
	m.satFraction = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_energy_saturation_fraction",
		Help: "Last observed energy buffer fill fraction.",
	})
	m.fieldFraction = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_field_fraction",
		Help: "Last observed containment field fraction.",
	})
	m.rateEstimate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_net_rate_estimate",
		Help: "Smoothed net generation rate estimate (energy/s).",
	})
	m.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_controller_state",
		Help: "Controller state (0 idle, 1 burning).",
	})
	m.registry.MustRegister(
		m.burnsTotal, m.abortsTotal, m.failSafesTotal,
		m.pollFailures, m.commandsTotal,
		m.temperature, m.satFraction, m.fieldFraction,
		m.rateEstimate, m.stateGauge,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot updates the telemetry gauges. Ratios with a missing
// denominator leave the gauge untouched.
func (m *Metrics) ObserveSnapshot(snap StatusSnapshot, estimate float64) {
	if m == nil {
		return
	}
	m.temperature.Set(snap.Temperature)
	if f, ok := snap.SatFraction(); ok {
		m.satFraction.Set(f)
	}
	if f, ok := snap.FieldFraction(); ok {
		m.fieldFraction.Set(f)
	}
	m.rateEstimate.Set(estimate)
}

func (m *Metrics) SetState(s State) {
	if m == nil {
		return
	}
	m.stateGauge.Set(float64(s))
}

func (m *Metrics) BurnStarted() {
	if m != nil {
		m.burnsTotal.Inc()
	}
}

func (m *Metrics) BurnAborted() {
	if m != nil {
		m.abortsTotal.Inc()
	}
}

func (m *Metrics) FailSafe() {
	if m != nil {
		m.failSafesTotal.Inc()
	}
}

func (m *Metrics) PollFailed() {
	if m != nil {
		m.pollFailures.Inc()
	}
}

func (m *Metrics) CommandIssued() {
	if m != nil {
		m.commandsTotal.Inc()
	}
}
