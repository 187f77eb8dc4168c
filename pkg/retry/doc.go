// Package retry provides a generic retry executor and circuit breaker
// for wrapping unreliable dependencies (the counter cache, the quota
// database).
//
// # Composition
//
// The two guards compose breaker-outside-retry: the circuit breaker
// fast-fails when a dependency is known-bad, and only calls the breaker
// lets through are retried with backoff:
//
//	breaker := retry.NewCircuitBreaker(breakerCfg, clock.System)
//	executor := retry.NewExecutor(retryCfg)
//
//	err := breaker.Do(ctx, func(ctx context.Context) error {
//	    return executor.Do(ctx, "redis", op)
//	})
//
// # Error Classification
//
// Callers distinguish three outcomes:
//
//   - nil: the operation eventually succeeded
//   - ErrCircuitOpen: the breaker rejected the call without invoking it
//   - any other error: the operation failed after exhausting retries,
//     or failed with a non-retryable error
//
// Context cancellation and deadline expiry abort the retry loop
// immediately and surface as a timeout, never as a silent success.
package retry
