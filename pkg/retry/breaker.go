package retry

import (
	"context"
	"errors"
	"sync"
	"time"

	"mailcove/gatekeeper/pkg/clock"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// invoking the wrapped operation. Callers treat it like a single
// transient failure of the dependency, minus the latency.
var ErrCircuitOpen = errors.New("retry: circuit open")

// BreakerState is the circuit breaker state machine position.
type BreakerState int32

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed BreakerState = iota

	// StateOpen rejects calls until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen allows exactly one trial call.
	StateHalfOpen
)

// String returns the lowercase state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker CLOSED -> OPEN.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays OPEN before
	// allowing a trial call (OPEN -> HALF_OPEN).
	RecoveryTimeout time.Duration
}

// applyDefaults fills zero-valued fields with working defaults.
func (c *BreakerConfig) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
}

// CircuitBreaker guards one logical dependency.
//
// Lifecycle: CLOSED -> OPEN after FailureThreshold consecutive
// failures; OPEN -> HALF_OPEN once RecoveryTimeout elapses; HALF_OPEN
// -> CLOSED on trial success, HALF_OPEN -> OPEN on trial failure.
//
// Each instance is owned by the executor wrapping one dependency and
// must not be shared across unrelated dependencies. Fast-fail
// rejections while OPEN do not count as new failures.
type CircuitBreaker struct {
	config BreakerConfig
	clock  clock.TimeSource

	// OnTransition, if set, is called on every state change. It runs
	// with the breaker lock held and must not call back into the breaker.
	OnTransition func(from, to BreakerState)

	mu            sync.Mutex
	state         BreakerState
	failures      int
	lastFailureAt time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a breaker in the CLOSED state.
// A nil ts uses the system clock.
func NewCircuitBreaker(config BreakerConfig, ts clock.TimeSource) *CircuitBreaker {
	config.applyDefaults()
	if ts == nil {
		ts = clock.System
	}
	return &CircuitBreaker{
		config: config,
		clock:  ts,
		state:  StateClosed,
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Do guards op with the breaker. While OPEN and inside the recovery
// timeout it returns ErrCircuitOpen without invoking op.
func (cb *CircuitBreaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := op(ctx)
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

// allow reports whether a call may proceed, transitioning OPEN ->
// HALF_OPEN when the recovery timeout has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return true

	case StateOpen:
		if cb.clock.Now().Sub(cb.lastFailureAt) < cb.config.RecoveryTimeout {
			cb.mu.Unlock()
			return false
		}
		cb.setStateLocked(StateHalfOpen)
		cb.trialInFlight = true
		cb.mu.Unlock()
		return true

	case StateHalfOpen:
		// One trial call at a time.
		if cb.trialInFlight {
			cb.mu.Unlock()
			return false
		}
		cb.trialInFlight = true
		cb.mu.Unlock()
		return true

	default:
		cb.mu.Unlock()
		return true
	}
}

// recordSuccess resets the failure count and closes the breaker after
// a successful trial call.
func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()

	switch cb.state {
	case StateHalfOpen:
		cb.trialInFlight = false
		cb.failures = 0
		cb.setStateLocked(StateClosed)
	case StateClosed:
		cb.failures = 0
	}
	cb.mu.Unlock()
}

// recordFailure counts a failure, tripping the breaker when the
// threshold is reached or a trial call fails.
func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	cb.lastFailureAt = cb.clock.Now()

	switch cb.state {
	case StateHalfOpen:
		cb.trialInFlight = false
		cb.failures = cb.config.FailureThreshold
		cb.setStateLocked(StateOpen)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.setStateLocked(StateOpen)
		}
	}
	cb.mu.Unlock()
}

// setStateLocked changes state and fires the transition hook.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) setStateLocked(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.OnTransition != nil {
		cb.OnTransition(from, to)
	}
}
