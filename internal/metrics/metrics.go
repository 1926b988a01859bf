// Package metrics holds the prometheus collectors for the session and token lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth_gateway"

// Outcome labels for orchestration runs
const (
	OutcomeRedirected  = "redirected"
	OutcomeStaleTokens = "stale_tokens"
	OutcomeNoClient    = "no_client"
	OutcomeTimedOut    = "timed_out"
)

// Outcome labels for user lifecycle events
const (
	OutcomeEventProcessed = "processed"
	OutcomeEventIgnored   = "ignored"
	OutcomeEventFailed    = "failed"
	OutcomeEventMalformed = "malformed"
)

// Metrics is the set of collectors exported by the gateway.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry             *prometheus.Registry
	orchestrations       *prometheus.CounterVec
	orchestrationSeconds prometheus.Histogram
	upstreamCalls        *prometheus.CounterVec
	sessionsInvalidated  *prometheus.CounterVec
	invalidationFailures prometheus.Counter
	events               *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		orchestrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_login_runs_total",
			Help:      "Post-login orchestration runs by terminal outcome.",
		}, []string{"outcome"}),
		orchestrationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "post_login_duration_seconds",
			Help:      "Time spent in the post-login chain before the redirect resumed.",
			Buckets:   prometheus.DefBuckets,
		}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to the IdP and identity service by operation and result.",
		}, []string{"operation", "result"}),
		sessionsInvalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_invalidated_total",
			Help:      "Sessions deleted, by reason.",
		}, []string{"reason"}),
		invalidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_invalidation_failures_total",
			Help:      "Individual session deletions that failed.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_events_total",
			Help:      "User lifecycle events by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	m.registry.MustRegister(
		m.orchestrations,
		m.orchestrationSeconds,
		m.upstreamCalls,
		m.sessionsInvalidated,
		m.invalidationFailures,
		m.events,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Orchestration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.orchestrations.WithLabelValues(outcome).Inc()
	m.orchestrationSeconds.Observe(seconds)
}

func (m *Metrics) UpstreamCall(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.upstreamCalls.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) SessionsInvalidated(reason string, deleted, failed int) {
	if m == nil {
		return
	}
	m.sessionsInvalidated.WithLabelValues(reason).Add(float64(deleted))
	m.invalidationFailures.Add(float64(failed))
}

func (m *Metrics) Event(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}
