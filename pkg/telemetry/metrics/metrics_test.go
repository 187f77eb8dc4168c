package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"mailcove/gatekeeper/pkg/config"
)

func newTestCollector() *Collector {
	return NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "mailcove",
		Subsystem: "gatekeeper",
	}, prometheus.NewRegistry())
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}

func TestRecordDecision(t *testing.T) {
	c := newTestCollector()
	c.RecordDecision("sliding_limiter", OutcomeAllowed)
	c.RecordDecision("sliding_limiter", OutcomeAllowed)
	c.RecordDecision("quota_enforcer", OutcomeDenied)

	body := scrape(t, c)
	if !strings.Contains(body, `mailcove_gatekeeper_decisions_total{component="sliding_limiter",outcome="allowed"} 2`) {
		t.Errorf("missing sliding_limiter allowed=2 in scrape:\n%s", body)
	}
	if !strings.Contains(body, `mailcove_gatekeeper_decisions_total{component="quota_enforcer",outcome="denied"} 1`) {
		t.Errorf("missing quota_enforcer denied=1 in scrape")
	}
}

func TestFallbackGauge(t *testing.T) {
	c := newTestCollector()

	c.SetFallbackActive(true)
	body := scrape(t, c)
	if !strings.Contains(body, "mailcove_gatekeeper_counter_fallback_active 1") {
		t.Error("fallback gauge not set to 1")
	}
	if !strings.Contains(body, "mailcove_gatekeeper_counter_fallback_engagements_total 1") {
		t.Error("engagement counter not incremented")
	}

	c.SetFallbackActive(false)
	body = scrape(t, c)
	if !strings.Contains(body, "mailcove_gatekeeper_counter_fallback_active 0") {
		t.Error("fallback gauge not reset to 0")
	}
	// Recovery must not count as another engagement.
	if !strings.Contains(body, "mailcove_gatekeeper_counter_fallback_engagements_total 1") {
		t.Error("engagement counter changed on recovery")
	}
}

func TestBreakerMetrics(t *testing.T) {
	c := newTestCollector()
	c.RecordBreakerTransition("redis", "open", 1)

	body := scrape(t, c)
	if !strings.Contains(body, `mailcove_gatekeeper_circuit_breaker_transitions_total{dependency="redis",to="open"} 1`) {
		t.Error("missing breaker transition counter")
	}
	if !strings.Contains(body, `mailcove_gatekeeper_circuit_breaker_state{dependency="redis"} 1`) {
		t.Error("missing breaker state gauge")
	}
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	// Must not panic.
	c.RecordDecision("x", OutcomeAllowed)
	c.ObserveCheckDuration("x", 0.1)
	c.RecordStoreFailure("redis", DispositionFailOpen)
	c.RecordBreakerTransition("redis", "open", 1)
	c.SetFallbackActive(true)
	if c.Registry() != nil {
		t.Error("nil collector Registry() != nil")
	}
}
