package config

import "time"

// UnlimitedSentinel is the limit value that marks a quota dimension as
// unlimited for a tier.
const UnlimitedSentinel int64 = -1

// Config is the root configuration for the gatekeeper engine.
type Config struct {
	// Server configures the operational HTTP surface (health, metrics).
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`

	// Redis configures the shared counter cache.
	Redis RedisConfig `yaml:"redis"`

	// Ledger configures the durable quota ledger.
	Ledger LedgerConfig `yaml:"ledger"`

	// Retry configures the retry executor wrapping counter store calls.
	Retry RetryConfig `yaml:"retry"`

	// Breaker configures the circuit breaker guarding the counter store.
	Breaker BreakerConfig `yaml:"circuit_breaker"`

	// Failover configures remote-store failover behavior.
	Failover FailoverConfig `yaml:"failover"`

	// DefaultTier is the tier applied to subjects with no explicit tier.
	DefaultTier string `yaml:"default_tier"`

	// Tiers maps subscription tier names to their limits.
	Tiers map[string]TierConfig `yaml:"tiers"`
}

// ServerConfig configures the operational HTTP server.
type ServerConfig struct {
	// ListenAddress is the host:port to bind (e.g., ":8091").
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled toggles metric collection and the /metrics endpoint.
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	Subsystem string `yaml:"subsystem"`
}

// RedisConfig configures the shared counter cache client.
type RedisConfig struct {
	// Address is the host:port of the Redis server.
	Address string `yaml:"address"`

	// Password authenticates the connection (empty for no auth).
	Password string `yaml:"password"`

	// DB is the Redis logical database number.
	DB int `yaml:"db"`

	// KeyPrefix is prepended to every counter key.
	KeyPrefix string `yaml:"key_prefix"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// OpTimeout bounds individual commands.
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// LedgerConfig configures the durable quota ledger.
type LedgerConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for database locks.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// SweepSchedule is a cron expression for the maintenance sweep.
	SweepSchedule string `yaml:"sweep_schedule"`

	// Retention is how long idle window rows are kept before sweeping.
	Retention time.Duration `yaml:"retention"`
}

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration `yaml:"max_delay"`

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is the cool-down before a trial call is allowed.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// FailoverConfig configures remote counter store failover.
type FailoverConfig struct {
	// ProbeInterval is how often the health probe pings the remote
	// store while the in-process fallback is engaged.
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// TierConfig holds the limits for one subscription tier.
type TierConfig struct {
	// RateLimit is the coarse sliding-window abuse limit for the tier.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Quotas are the billing quota limits for the tier.
	Quotas QuotaConfig `yaml:"quotas"`
}

// RateLimitConfig configures a sliding-window rate limit.
type RateLimitConfig struct {
	// Window is the rolling window length.
	Window time.Duration `yaml:"window"`

	// MaxRequests is the maximum requests permitted per window.
	MaxRequests int64 `yaml:"max_requests"`
}

// QuotaConfig holds the quota limits for one tier. Each value is a
// positive integer or UnlimitedSentinel.
type QuotaConfig struct {
	// DailyEmails is the email-send limit per UTC day.
	DailyEmails int64 `yaml:"daily_emails"`

	// MonthlyEmails is the email-send limit per calendar month.
	MonthlyEmails int64 `yaml:"monthly_emails"`

	// MonthlyRecipients is the recipient limit per calendar month.
	MonthlyRecipients int64 `yaml:"monthly_recipients"`

	// Templates is the template-creation limit per UTC day.
	Templates int64 `yaml:"templates"`

	// CustomDomains is the custom-domain registration limit per
	// calendar month.
	CustomDomains int64 `yaml:"custom_domains"`
}
