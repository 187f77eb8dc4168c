package config

import "time"

// ApplyDefaults fills unset fields with production defaults.
// Tier tables get no defaults; a deployment must define its own tiers.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8091"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "mailcove"
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "gatekeeper"
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = "localhost:6379"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "gk:"
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 2 * time.Second
	}
	if cfg.Redis.OpTimeout == 0 {
		cfg.Redis.OpTimeout = 500 * time.Millisecond
	}

	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "gatekeeper.db"
	}
	if cfg.Ledger.BusyTimeout == 0 {
		cfg.Ledger.BusyTimeout = 5 * time.Second
	}
	if cfg.Ledger.SweepSchedule == "" {
		cfg.Ledger.SweepSchedule = "@hourly"
	}
	if cfg.Ledger.Retention == 0 {
		cfg.Ledger.Retention = 90 * 24 * time.Hour
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 100 * time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = time.Second
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 2
	}

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.RecoveryTimeout == 0 {
		cfg.Breaker.RecoveryTimeout = 30 * time.Second
	}

	if cfg.Failover.ProbeInterval == 0 {
		cfg.Failover.ProbeInterval = 10 * time.Second
	}

	if cfg.DefaultTier == "" {
		cfg.DefaultTier = "free"
	}
}
