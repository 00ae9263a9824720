// Package metrics defines the studio's Prometheus metrics. It is the single
// place metric names, labels and help strings live.
//
// Every recording method is safe on a nil *Metrics, so components can take
// an optional *Metrics without guarding each call.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studio"

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// RequestDuration measures HTTP handling time.
	// Labels: method, area (first path segment), status class ("2xx").
	RequestDuration *prometheus.HistogramVec

	// QueryDuration measures database calls. Label: op.
	QueryDuration *prometheus.HistogramVec

	// GateDecisions counts access gate verdicts. Labels: outcome, reason.
	GateDecisions *prometheus.CounterVec

	// Registrations counts wizard submissions. Label: result
	// ("success", "invalid", "email_taken", "write_failed").
	Registrations *prometheus.CounterVec

	// AvailabilityChecks counts settled uniqueness checks.
	// Labels: field, outcome.
	AvailabilityChecks *prometheus.CounterVec

	// AuthEvents counts sign-in, sign-up, verification and recovery events.
	// Label: event.
	AuthEvents *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry, including the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "area", "status"}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Duration of database calls.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Access gate decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration wizard submissions by result.",
		}, []string{"result"}),
		AvailabilityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Settled email/phone uniqueness checks by field and outcome.",
		}, []string{"field", "outcome"}),
		AuthEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events.",
		}, []string{"event"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, area string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, area, StatusClass(status)).Observe(d.Seconds())
}

// ObserveQuery records one database call.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// GateDecision counts one gate verdict.
func (m *Metrics) GateDecision(outcome, reason string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(outcome, reason).Inc()
}

// Registration counts one wizard submission.
func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result).Inc()
}

// Availability counts one settled uniqueness check.
func (m *Metrics) Availability(field, outcome string) {
	if m == nil {
		return
	}
	m.AvailabilityChecks.WithLabelValues(field, outcome).Inc()
}

// Auth counts one authentication event.
func (m *Metrics) Auth(event string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event).Inc()
}

// StatusClass maps 404 to "4xx".
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "1xx"
}
