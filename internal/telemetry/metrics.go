// Package telemetry holds the Prometheus collectors and the OpenTelemetry
// tracer setup shared by the execution core.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

const namespace = "meterbot"

// Metrics groups every collector exported by the core. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	admissions   *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	running      prometheus.Gauge
	charges      *prometheus.CounterVec
	chargedMicro *prometheus.CounterVec
	edits        *prometheus.CounterVec
	dropped      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Submissions by admission result.",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_outcomes_total",
			Help:      "Finished requests by terminal outcome.",
		}, []string{"outcome"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_running",
			Help:      "Requests currently holding a user slot.",
		}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_charges_total",
			Help:      "Ledger charges by action kind.",
		}, []string{"kind"}),
		chargedMicro: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_charged_microeuros_total",
			Help:      "Amount charged in micro-euros by action kind.",
		}, []string{"kind"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_edits_total",
			Help:      "Display edit attempts by result.",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_turns_dropped_total",
			Help:      "History turns dropped to fit the context window.",
		}),
	}
	reg.MustRegister(m.admissions, m.outcomes, m.running, m.charges, m.chargedMicro, m.edits, m.dropped)
	return m
}

// Admission counts a submission by result ("accepted", "busy", ...).
func (m *Metrics) Admission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}

// Started marks a request as holding its slot.
func (m *Metrics) Started() {
	if m == nil {
		return
	}
	m.running.Inc()
}

// Finished records the terminal outcome of a request and releases the gauge.
func (m *Metrics) Finished(outcome string) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.outcomes.WithLabelValues(outcome).Inc()
}

// Charge records one ledger charge.
func (m *Metrics) Charge(kind string, microEuros int64) {
	if m == nil {
		return
	}
	m.charges.WithLabelValues(kind).Inc()
	if microEuros > 0 {
		m.chargedMicro.WithLabelValues(kind).Add(float64(microEuros))
	}
}

// Edit records a display edit attempt by result.
func (m *Metrics) Edit(result string) {
	if m == nil {
		return
	}
	m.edits.WithLabelValues(result).Inc()
}

// Dropped records turns dropped from a prepared context.
func (m *Metrics) Dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}
