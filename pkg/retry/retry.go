package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// ErrTimeout is returned when the overall deadline expires mid-retry.
// It wraps the underlying context error so callers can still match
// context.DeadlineExceeded or context.Canceled with errors.Is.
var ErrTimeout = errors.New("retry: deadline exceeded")

// Config controls the backoff schedule for an Executor.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	// An operation is attempted at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay between retries.
	MaxDelay time.Duration

	// BackoffMultiplier is the exponential growth factor applied per retry.
	BackoffMultiplier float64

	// Retryable classifies errors. A false return re-raises immediately
	// without further attempts. If nil, all errors are retryable.
	Retryable func(error) bool
}

// applyDefaults fills zero-valued fields with working defaults.
func (c *Config) applyDefaults() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 1 * time.Second
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 2
	}
}

// Executor retries fallible operations with exponential backoff and jitter.
//
// The delay before retry n (1-based) is:
//
//	min(MaxDelay, BaseDelay * BackoffMultiplier^(n-1)) * jitter
//
// where jitter is drawn uniformly from [0.5, 1.5). The cap is applied
// before jitter so the jittered delay may exceed MaxDelay by up to 50%.
type Executor struct {
	config Config
	log    *slog.Logger

	// jitter returns a multiplier in [0.5, 1.5). Replaceable in tests.
	jitter func() float64

	// sleep waits for d or until ctx is done. Replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor with the given configuration.
func NewExecutor(config Config) *Executor {
	config.applyDefaults()
	return &Executor{
		config: config,
		log:    slog.Default(),
		jitter: func() float64 { return 0.5 + rand.Float64() },
		sleep:  sleepContext,
	}
}

// WithLogger returns a copy of the executor that logs through log.
func (e *Executor) WithLogger(log *slog.Logger) *Executor {
	clone := *e
	clone.log = log
	return &clone
}

// Do invokes op, retrying per the executor's configuration. The name
// identifies the wrapped dependency in logs.
//
// Do returns nil as soon as an attempt succeeds. It returns the last
// error when retries are exhausted, immediately when the error is not
// retryable, and a timeout error when ctx expires mid-retry.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.config.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrTimeout, name, attempt-1, err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if e.config.Retryable != nil && !e.config.Retryable(lastErr) {
			return lastErr
		}
		if attempt == e.config.MaxRetries+1 {
			break
		}

		delay := time.Duration(float64(e.BaseDelayFor(attempt)) * e.jitter())
		e.log.Debug("retrying operation",
			"dependency", name,
			"attempt", attempt,
			"max_attempts", e.config.MaxRetries+1,
			"delay", delay,
			"error", lastErr,
		)

		if err := e.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrTimeout, name, attempt, err)
		}
	}

	return lastErr
}

// BaseDelayFor returns the pre-jitter delay applied after the given
// attempt (1-based). Exposed so the backoff schedule can be asserted
// deterministically.
func (e *Executor) BaseDelayFor(attempt int) time.Duration {
	delay := float64(e.config.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= e.config.BackoffMultiplier
		if delay >= float64(e.config.MaxDelay) {
			return e.config.MaxDelay
		}
	}
	if delay > float64(e.config.MaxDelay) {
		return e.config.MaxDelay
	}
	return time.Duration(delay)
}

// sleepContext sleeps for d unless ctx finishes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
