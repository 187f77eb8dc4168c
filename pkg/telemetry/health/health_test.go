package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReadinessAllHealthy(t *testing.T) {
	c := New(time.Second)
	c.Register("counter_store", func(ctx context.Context) error { return nil })
	c.Register("ledger", func(ctx context.Context) error { return nil })

	status := c.Readiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("status = %q, want ready", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Errorf("got %d checks, want 2", len(status.Checks))
	}
	for name, result := range status.Checks {
		if result.Status != "ok" {
			t.Errorf("check %q status = %q, want ok", name, result.Status)
		}
	}
}

func TestReadinessDegraded(t *testing.T) {
	c := New(time.Second)
	c.Register("counter_store", func(ctx context.Context) error { return nil })
	c.Register("ledger", func(ctx context.Context) error {
		return errors.New("database is locked")
	})

	status := c.Readiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["ledger"].Message != "database is locked" {
		t.Errorf("ledger message = %q", status.Checks["ledger"].Message)
	}
}

func TestReadinessTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Hour)
		return nil
	})

	status := c.Readiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["stuck"].Message != "health check timeout" {
		t.Errorf("message = %q, want timeout", status.Checks["stuck"].Message)
	}
}

func TestReadinessHandlerStatusCodes(t *testing.T) {
	c := New(time.Second)
	c.Register("ok", func(ctx context.Context) error { return nil })

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy readiness code = %d, want 200", rec.Code)
	}

	c.Register("bad", func(ctx context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded readiness code = %d, want 503", rec.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	c := New(time.Second)

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness code = %d, want 200", rec.Code)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("liveness body not JSON: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("liveness status = %q, want ok", status.Status)
	}
}

func TestHandlersRejectPost(t *testing.T) {
	c := New(time.Second)
	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST liveness code = %d, want 405", rec.Code)
	}
}
