package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_address: ":9000"
redis:
  address: "redis.internal:6379"
  key_prefix: "test:"
ledger:
  path: "/tmp/ledger.db"
default_tier: free
tiers:
  free:
    rate_limit:
      window: 60s
      max_requests: 120
    quotas:
      daily_emails: 100
      monthly_emails: 2000
      monthly_recipients: 5000
      templates: 10
      custom_domains: 1
  enterprise:
    rate_limit:
      window: 60s
      max_requests: 6000
    quotas:
      daily_emails: -1
      monthly_emails: -1
      monthly_recipients: -1
      templates: -1
      custom_domains: -1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddress != ":9000" {
		t.Errorf("ListenAddress = %q, want :9000", cfg.Server.ListenAddress)
	}
	if cfg.Redis.Address != "redis.internal:6379" {
		t.Errorf("Redis.Address = %q", cfg.Redis.Address)
	}

	free, ok := cfg.Tiers["free"]
	if !ok {
		t.Fatal("free tier missing")
	}
	if free.Quotas.DailyEmails != 100 {
		t.Errorf("free daily_emails = %d, want 100", free.Quotas.DailyEmails)
	}
	if free.RateLimit.Window != 60*time.Second {
		t.Errorf("free rate_limit.window = %v, want 60s", free.RateLimit.Window)
	}

	ent := cfg.Tiers["enterprise"]
	if ent.Quotas.MonthlyEmails != UnlimitedSentinel {
		t.Errorf("enterprise monthly_emails = %d, want %d", ent.Quotas.MonthlyEmails, UnlimitedSentinel)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("default logging level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("default max_retries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BackoffMultiplier != 2 {
		t.Errorf("default backoff_multiplier = %v, want 2", cfg.Retry.BackoffMultiplier)
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("default failure_threshold = %d, want 5", cfg.Breaker.FailureThreshold)
	}
	if cfg.Failover.ProbeInterval != 10*time.Second {
		t.Errorf("default probe_interval = %v, want 10s", cfg.Failover.ProbeInterval)
	}
	if cfg.Ledger.SweepSchedule != "@hourly" {
		t.Errorf("default sweep_schedule = %q, want @hourly", cfg.Ledger.SweepSchedule)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() of missing file succeeded, want error")
	}
}

func TestValidateRejectsZeroQuota(t *testing.T) {
	bad := strings.Replace(validYAML, "daily_emails: 100", "daily_emails: 0", 1)
	_, err := Load(writeConfig(t, bad))
	if err == nil {
		t.Fatal("Load() succeeded with zero quota, want validation error")
	}
	if !strings.Contains(err.Error(), "tiers.free.quotas.daily_emails") {
		t.Errorf("error %q does not name the bad field", err)
	}
}

func TestValidateRejectsUnknownDefaultTier(t *testing.T) {
	bad := strings.Replace(validYAML, "default_tier: free", "default_tier: platinum", 1)
	_, err := Load(writeConfig(t, bad))
	if err == nil {
		t.Fatal("Load() succeeded with unknown default tier, want validation error")
	}
	if !strings.Contains(err.Error(), "default_tier") {
		t.Errorf("error %q does not name default_tier", err)
	}
}

func TestValidateRejectsMissingTiers(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	err := Validate(&cfg)
	if err == nil {
		t.Fatal("Validate() succeeded with no tiers, want error")
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := Config{
		Retry:   RetryConfig{MaxRetries: -1, BaseDelay: -time.Second, BackoffMultiplier: 0.5},
		Breaker: BreakerConfig{FailureThreshold: 0},
	}
	err := Validate(&cfg)
	if err == nil {
		t.Fatal("Validate() succeeded, want error")
	}
	var verr ValidationError
	ok := false
	if v, isV := err.(ValidationError); isV {
		verr, ok = v, true
	}
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) < 4 {
		t.Errorf("collected %d errors, want at least 4: %v", len(verr.Errors), verr)
	}
}
