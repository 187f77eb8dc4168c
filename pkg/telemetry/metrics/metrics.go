// Package metrics provides Prometheus instrumentation for the engine.
//
// The collector tracks the engine's observable events: allow/deny
// decisions, store failures with their disposition (fail-open vs
// fail-closed), circuit breaker transitions, and fallback store
// engagement. A nil *Collector is a valid no-op receiver so components
// can be constructed without metrics in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailcove/gatekeeper/pkg/config"
)

// Collector owns all Prometheus metrics for the gatekeeper engine.
type Collector struct {
	registry *prometheus.Registry

	// decisions counts allow/deny outcomes per component.
	decisions *prometheus.CounterVec

	// checkDuration observes end-to-end check latency per component.
	checkDuration *prometheus.HistogramVec

	// storeFailures counts dependency failures by final disposition.
	storeFailures *prometheus.CounterVec

	// breakerState exports the current breaker state per dependency
	// (0 closed, 1 open, 2 half-open).
	breakerState *prometheus.GaugeVec

	// breakerTransitions counts state changes per dependency.
	breakerTransitions *prometheus.CounterVec

	// fallbackActive is 1 while the in-process fallback store is engaged.
	fallbackActive prometheus.Gauge

	// fallbackEngagements counts transitions onto the fallback store.
	fallbackEngagements prometheus.Counter
}

// NewCollector creates a collector registered against registry.
// If registry is nil a new private registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	ns, sub := cfg.Namespace, cfg.Subsystem

	c := &Collector{
		registry: registry,

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "decisions_total",
				Help:      "Rate-limit and quota decisions by component and outcome",
			},
			[]string{"component", "outcome"},
		),

		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "check_duration_seconds",
				Help:      "Latency of limit checks, including retries",
				// Checks are sub-millisecond in the happy path but may
				// stretch to seconds under retry backoff.
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
			},
			[]string{"component"},
		),

		storeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "store_failures_total",
				Help:      "Dependency failures after retries, by disposition",
			},
			[]string{"dependency", "disposition"},
		),

		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"dependency"},
		),

		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker state transitions by destination state",
			},
			[]string{"dependency", "to"},
		),

		fallbackActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "counter_fallback_active",
				Help:      "1 while the in-process fallback counter store is engaged",
			},
		),

		fallbackEngagements: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "counter_fallback_engagements_total",
				Help:      "Times the engine switched to the in-process fallback store",
			},
		),
	}

	registry.MustRegister(
		c.decisions,
		c.checkDuration,
		c.storeFailures,
		c.breakerState,
		c.breakerTransitions,
		c.fallbackActive,
		c.fallbackEngagements,
	)

	return c
}

// Outcome labels for RecordDecision.
const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeFailOpen = "fail_open"
	OutcomeError    = "error"
)

// Disposition labels for RecordStoreFailure.
const (
	DispositionFailOpen   = "fail_open"
	DispositionFailClosed = "fail_closed"
	DispositionFallback   = "fallback"
	DispositionSwallowed  = "swallowed"
)

// RecordDecision counts one decision outcome for a component.
func (c *Collector) RecordDecision(component, outcome string) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(component, outcome).Inc()
}

// ObserveCheckDuration records the latency of one limit check.
func (c *Collector) ObserveCheckDuration(component string, seconds float64) {
	if c == nil {
		return
	}
	c.checkDuration.WithLabelValues(component).Observe(seconds)
}

// RecordStoreFailure counts one dependency failure and its disposition.
func (c *Collector) RecordStoreFailure(dependency, disposition string) {
	if c == nil {
		return
	}
	c.storeFailures.WithLabelValues(dependency, disposition).Inc()
}

// RecordBreakerTransition counts a breaker transition and updates the
// state gauge. stateValue follows the circuit_breaker_state encoding.
func (c *Collector) RecordBreakerTransition(dependency, to string, stateValue float64) {
	if c == nil {
		return
	}
	c.breakerTransitions.WithLabelValues(dependency, to).Inc()
	c.breakerState.WithLabelValues(dependency).Set(stateValue)
}

// SetFallbackActive flips the fallback gauge and, when engaging, counts
// the engagement.
func (c *Collector) SetFallbackActive(active bool) {
	if c == nil {
		return
	}
	if active {
		c.fallbackActive.Set(1)
		c.fallbackEngagements.Inc()
	} else {
		c.fallbackActive.Set(0)
	}
}

// Handler returns an http.Handler serving the collector's registry in
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
