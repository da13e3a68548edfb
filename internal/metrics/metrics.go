// Package metrics defines the Prometheus collectors exported by the chat
// server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gochat"

// Command invocation results.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the collectors updated by sessions.
type Metrics struct {
	ActiveSessions       prometheus.Gauge
	MessagesPublished    prometheus.Counter
	MessagesDropped      prometheus.Counter
	RegistrationFailures prometheus.Counter
	RateLimited          prometheus.Counter
	CommandsInvoked      *prometheus.CounterVec
}

// NewRegistry creates a Prometheus registry with Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// New creates the chat collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of sessions with a registered identity.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to the hub.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_dropped_total",
			Help:      "Total number of messages dropped for lagging subscribers.",
		}),
		RegistrationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "registration_failures_total",
			Help:      "Total number of rejected name registrations.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "rate_limited_total",
			Help:      "Total number of inbound messages discarded by the rate limiter.",
		}),
		CommandsInvoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "invocations_total",
			Help:      "Total number of command invocations by command and result.",
		}, []string{"command", "result"}),
	}

	reg.MustRegister(
		m.ActiveSessions,
		m.MessagesPublished,
		m.MessagesDropped,
		m.RegistrationFailures,
		m.RateLimited,
		m.CommandsInvoked,
	)
	return m
}

// Handler returns an http.Handler that serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
