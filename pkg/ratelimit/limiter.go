package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mailcove/gatekeeper/pkg/clock"
	"mailcove/gatekeeper/pkg/config"
	"mailcove/gatekeeper/pkg/counter"
	"mailcove/gatekeeper/pkg/telemetry/metrics"
)

const component = "ratelimit"

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the window's request cap.
	Limit int64

	// Remaining is how many requests are left in the current window.
	Remaining int64

	// ResetAt is when the current window expires.
	ResetAt time.Time

	// RetryAfter is how long to wait before retrying. Set only on
	// denial.
	RetryAfter time.Duration

	// FailedOpen marks a decision that was allowed only because the
	// counter store was unreachable. Remaining and ResetAt carry no
	// information when set.
	FailedOpen bool
}

// Limiter checks requests against per-subject sliding windows.
type Limiter struct {
	store   counter.Store
	clock   clock.TimeSource
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates a limiter over the given counter store. A nil ts defaults
// to the system clock; logger and collector may be nil.
func New(store counter.Store, ts clock.TimeSource, logger *slog.Logger, collector *metrics.Collector) *Limiter {
	if ts == nil {
		ts = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:   store,
		clock:   ts,
		logger:  logger.With("component", component),
		metrics: collector,
	}
}

// Check evaluates one request from subject under the given policy.
// scope namespaces the counter key so the same subject can be limited
// independently per dimension ("api", "send", "ip").
//
// The increment-or-create step is a single atomic store operation, so
// two concurrent first requests cannot each create an unexpiring window.
// Check never returns an error for store failures; those fail open with
// Decision.FailedOpen set.
func (l *Limiter) Check(ctx context.Context, scope, subject string, policy config.RateLimitConfig) *Decision {
	start := time.Now()
	defer func() {
		l.metrics.ObserveCheckDuration(component, time.Since(start).Seconds())
	}()

	key := windowKey(scope, subject, policy.Window)

	value, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return l.failOpen(scope, subject, "get", policy, err)
	}

	// First request in the window creates the key and its expiry in one
	// atomic round trip.
	if !ok {
		newValue, err := l.store.IncrementWithExpiry(ctx, key, policy.Window)
		if err != nil {
			return l.failOpen(scope, subject, "create", policy, err)
		}
		l.metrics.RecordDecision(component, metrics.OutcomeAllowed)
		return &Decision{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: clampRemaining(policy.MaxRequests - newValue),
			ResetAt:   l.clock.Now().Add(policy.Window),
		}
	}

	if value >= policy.MaxRequests {
		retryAfter := l.windowTTL(ctx, key, policy.Window)
		l.metrics.RecordDecision(component, metrics.OutcomeDenied)
		return &Decision{
			Allowed:    false,
			Limit:      policy.MaxRequests,
			Remaining:  0,
			ResetAt:    l.clock.Now().Add(retryAfter),
			RetryAfter: retryAfter,
		}
	}

	// Increment without touching the TTL so the window keeps its
	// original expiry.
	newValue, err := l.store.Increment(ctx, key)
	if err != nil {
		return l.failOpen(scope, subject, "increment", policy, err)
	}
	l.metrics.RecordDecision(component, metrics.OutcomeAllowed)
	return &Decision{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: clampRemaining(policy.MaxRequests - newValue),
		ResetAt:   l.clock.Now().Add(l.windowTTL(ctx, key, policy.Window)),
	}
}

// windowTTL reads the key's remaining TTL, falling back to the full
// window length when the store cannot say.
func (l *Limiter) windowTTL(ctx context.Context, key string, window time.Duration) time.Duration {
	ttl, ok, err := l.store.TTL(ctx, key)
	if err != nil || !ok {
		return window
	}
	return ttl
}

func (l *Limiter) failOpen(scope, subject, op string, policy config.RateLimitConfig, err error) *Decision {
	l.logger.Warn("counter store unavailable, failing open",
		"scope", scope,
		"subject", subject,
		"op", op,
		"error", err,
	)
	l.metrics.RecordStoreFailure("counter", metrics.DispositionFailOpen)
	l.metrics.RecordDecision(component, metrics.OutcomeFailOpen)
	return &Decision{
		Allowed:    true,
		Limit:      policy.MaxRequests,
		FailedOpen: true,
	}
}

func windowKey(scope, subject string, window time.Duration) string {
	return fmt.Sprintf("%s:%s:%ds", scope, subject, int64(window.Seconds()))
}

func clampRemaining(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
