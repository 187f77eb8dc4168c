package counter

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"mailcove/gatekeeper/pkg/retry"
	"mailcove/gatekeeper/pkg/telemetry/metrics"
)

// FailoverStore routes counter operations to a remote shared store,
// degrading to a process-local fallback while the remote is unhealthy.
//
// Remote calls are guarded breaker-outside-retry: the circuit breaker
// fast-fails while the remote is known-bad, and calls it admits are
// retried with backoff. When a call still fails (retries exhausted,
// or the breaker is open), the store engages the fallback as a logged,
// counted state transition rather than a silent catch, and serves
// from the local store until the health probe sees the remote recover.
//
// The fallback provides no cross-process coordination; engaging it is
// an availability-over-consistency degradation.
type FailoverStore struct {
	remote Store
	local  Store

	breaker *retry.CircuitBreaker
	retrier *retry.Executor

	probeInterval time.Duration
	logger        *slog.Logger
	metrics       *metrics.Collector

	degraded atomic.Bool
}

// FailoverOptions configures a FailoverStore.
type FailoverOptions struct {
	// Breaker guards the remote dependency. Required.
	Breaker *retry.CircuitBreaker

	// Retrier absorbs transient remote failures. Required.
	Retrier *retry.Executor

	// ProbeInterval is the period of the recovery health probe.
	// Defaults to 10 seconds.
	ProbeInterval time.Duration

	// Logger receives failover state transitions. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Metrics records failover and breaker events. Optional.
	Metrics *metrics.Collector
}

// IsTransient reports whether err is a retryable counter store failure.
// It is the retryable-predicate used by executors wrapping a Store.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// NewFailoverStore wires remote and local stores behind the guard pair.
func NewFailoverStore(remote, local Store, opts FailoverOptions) *FailoverStore {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	f := &FailoverStore{
		remote:        remote,
		local:         local,
		breaker:       opts.Breaker,
		retrier:       opts.Retrier,
		probeInterval: opts.ProbeInterval,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}

	f.breaker.OnTransition = func(from, to retry.BreakerState) {
		f.metrics.RecordBreakerTransition("redis", to.String(), float64(to))
	}

	return f
}

// Degraded reports whether the fallback store is currently engaged.
func (f *FailoverStore) Degraded() bool {
	return f.degraded.Load()
}

// Increment implements Store.Increment.
func (f *FailoverStore) Increment(ctx context.Context, key string) (int64, error) {
	var value int64
	err := f.do(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		value, opErr = s.Increment(ctx, key)
		return opErr
	})
	return value, err
}

// IncrementWithExpiry implements Store.IncrementWithExpiry.
func (f *FailoverStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var value int64
	err := f.do(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		value, opErr = s.IncrementWithExpiry(ctx, key, ttl)
		return opErr
	})
	return value, err
}

// Get implements Store.Get.
func (f *FailoverStore) Get(ctx context.Context, key string) (int64, bool, error) {
	var (
		value int64
		ok    bool
	)
	err := f.do(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		value, ok, opErr = s.Get(ctx, key)
		return opErr
	})
	return value, ok, err
}

// TTL implements Store.TTL.
func (f *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	var (
		ttl time.Duration
		ok  bool
	)
	err := f.do(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		ttl, ok, opErr = s.TTL(ctx, key)
		return opErr
	})
	return ttl, ok, err
}

// Ping implements Store.Ping. It always probes the remote store so
// health endpoints report the true state of the shared backend even
// while the fallback is engaged.
func (f *FailoverStore) Ping(ctx context.Context) error {
	return f.remote.Ping(ctx)
}

// Close implements Store.Close.
func (f *FailoverStore) Close() error {
	remoteErr := f.remote.Close()
	localErr := f.local.Close()
	if remoteErr != nil {
		return remoteErr
	}
	return localErr
}

// RunProbe periodically checks remote health until ctx is cancelled.
// While degraded, a successful probe routes traffic back to the remote
// store and resets the local fallback counters.
func (f *FailoverStore) RunProbe(ctx context.Context) {
	ticker := time.NewTicker(f.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Probe(ctx)
		}
	}
}

// Probe performs one recovery check. Exposed so tests and operators
// can trigger recovery deterministically.
func (f *FailoverStore) Probe(ctx context.Context) {
	if !f.degraded.Load() {
		return
	}

	if err := f.remote.Ping(ctx); err != nil {
		f.logger.Debug("remote counter store still unhealthy",
			"dependency", "redis",
			"error", err,
		)
		return
	}

	if f.degraded.CompareAndSwap(true, false) {
		// Fallback counts are process-local and stale relative to the
		// shared store; drop them rather than carry them across.
		_ = f.local.Close()
		f.metrics.SetFallbackActive(false)
		f.logger.Info("remote counter store recovered; fallback disengaged",
			"dependency", "redis",
		)
	}
}

// do executes op against the active store, engaging the fallback when
// the remote fails despite the guard pair.
func (f *FailoverStore) do(ctx context.Context, op func(ctx context.Context, s Store) error) error {
	if f.degraded.Load() {
		return op(ctx, f.local)
	}

	err := f.breaker.Do(ctx, func(ctx context.Context) error {
		return f.retrier.Do(ctx, "redis", func(ctx context.Context) error {
			return op(ctx, f.remote)
		})
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, retry.ErrCircuitOpen) || errors.Is(err, retry.ErrTimeout) || IsTransient(err) {
		f.engageFallback(err)
		return op(ctx, f.local)
	}
	return err
}

// engageFallback flips routing to the local store exactly once per outage.
func (f *FailoverStore) engageFallback(cause error) {
	if !f.degraded.CompareAndSwap(false, true) {
		return
	}
	f.metrics.SetFallbackActive(true)
	f.metrics.RecordStoreFailure("redis", metrics.DispositionFallback)
	f.logger.Warn("remote counter store unavailable; engaging in-process fallback",
		"dependency", "redis",
		"error", cause,
	)
}
