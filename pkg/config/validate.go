package config

import (
	"fmt"
	"strings"
)

// FieldError is a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "tiers.free.quotas.daily_emails").
	Field string

	// Message is a human-readable description of the problem.
	Message string
}

// Error returns the formatted field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates all field errors found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError
// listing every violated rule, or nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateBreaker(&cfg.Breaker)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateTiers(cfg)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRetry(cfg *RetryConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{"retry.max_retries", "must be >= 0"})
	}
	if cfg.BaseDelay <= 0 {
		errs = append(errs, FieldError{"retry.base_delay", "must be positive"})
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		errs = append(errs, FieldError{"retry.max_delay", "must be >= base_delay"})
	}
	if cfg.BackoffMultiplier < 1 {
		errs = append(errs, FieldError{"retry.backoff_multiplier", "must be >= 1"})
	}
	return errs
}

func validateBreaker(cfg *BreakerConfig) []FieldError {
	var errs []FieldError
	if cfg.FailureThreshold <= 0 {
		errs = append(errs, FieldError{"circuit_breaker.failure_threshold", "must be positive"})
	}
	if cfg.RecoveryTimeout <= 0 {
		errs = append(errs, FieldError{"circuit_breaker.recovery_timeout", "must be positive"})
	}
	return errs
}

func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{"ledger.path", "must not be empty"})
	}
	if cfg.Retention <= 0 {
		errs = append(errs, FieldError{"ledger.retention", "must be positive"})
	}
	return errs
}

func validateTiers(cfg *Config) []FieldError {
	var errs []FieldError

	if len(cfg.Tiers) == 0 {
		errs = append(errs, FieldError{"tiers", "at least one tier must be defined"})
		return errs
	}

	if _, ok := cfg.Tiers[cfg.DefaultTier]; !ok {
		errs = append(errs, FieldError{
			Field:   "default_tier",
			Message: fmt.Sprintf("tier %q is not defined in tiers", cfg.DefaultTier),
		})
	}

	for name, tier := range cfg.Tiers {
		prefix := "tiers." + name

		if tier.RateLimit.Window <= 0 {
			errs = append(errs, FieldError{prefix + ".rate_limit.window", "must be positive"})
		}
		if tier.RateLimit.MaxRequests <= 0 {
			errs = append(errs, FieldError{prefix + ".rate_limit.max_requests", "must be positive"})
		}

		quotas := []struct {
			field string
			value int64
		}{
			{"daily_emails", tier.Quotas.DailyEmails},
			{"monthly_emails", tier.Quotas.MonthlyEmails},
			{"monthly_recipients", tier.Quotas.MonthlyRecipients},
			{"templates", tier.Quotas.Templates},
			{"custom_domains", tier.Quotas.CustomDomains},
		}
		for _, q := range quotas {
			if q.value <= 0 && q.value != UnlimitedSentinel {
				errs = append(errs, FieldError{
					Field:   prefix + ".quotas." + q.field,
					Message: fmt.Sprintf("must be positive or %d (unlimited), got %d", UnlimitedSentinel, q.value),
				})
			}
		}
	}

	return errs
}
