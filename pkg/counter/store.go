// Package counter abstracts the shared, low-latency counter backend
// used by the sliding rate limiter.
//
// The primary implementation is RedisStore, shared by every process
// instance. MemoryStore is a process-local degradation engaged by
// FailoverStore only while the remote store is unreachable; it trades
// cross-process consistency for availability and is never the
// long-term limiter once the remote store recovers.
package counter

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps transient backend failures (connection refused,
// timeouts, server-side errors). Operations failing with it are
// retryable.
var ErrUnavailable = errors.New("counter store unavailable")

// Store is an atomic counter backend.
//
// All counters are non-negative integers keyed by opaque strings.
// Implementations must be safe for concurrent use.
type Store interface {
	// Increment atomically adds 1 to the counter at key and returns
	// the new value. The key's TTL, if any, is left untouched.
	Increment(ctx context.Context, key string) (int64, error)

	// IncrementWithExpiry atomically adds 1 to the counter at key and,
	// only if the key did not previously exist, sets its TTL. The
	// increment and the conditional expiry are a single atomic unit: a
	// concurrent reader never observes a freshly created key without
	// an expiry.
	IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the counter value at key. ok is false when the key
	// does not exist (or has expired).
	Get(ctx context.Context, key string) (value int64, ok bool, err error)

	// TTL returns the remaining lifetime of key. ok is false when the
	// key does not exist or carries no expiry.
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)

	// Ping reports whether the backend is reachable and serving.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
