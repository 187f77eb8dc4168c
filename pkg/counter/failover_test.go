package counter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"mailcove/gatekeeper/pkg/clock"
	"mailcove/gatekeeper/pkg/retry"
)

// flakyStore wraps a MemoryStore and fails every operation while
// failing is set.
type flakyStore struct {
	*MemoryStore
	failing atomic.Bool
	calls   atomic.Int64
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore(nil)}
}

func (s *flakyStore) fail(err error) error {
	s.calls.Add(1)
	if s.failing.Load() {
		return err
	}
	return nil
}

func (s *flakyStore) Increment(ctx context.Context, key string) (int64, error) {
	if err := s.fail(wrapRedisErr("incr", context.DeadlineExceeded)); err != nil {
		return 0, err
	}
	return s.MemoryStore.Increment(ctx, key)
}

func (s *flakyStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := s.fail(wrapRedisErr("incr+expire", context.DeadlineExceeded)); err != nil {
		return 0, err
	}
	return s.MemoryStore.IncrementWithExpiry(ctx, key, ttl)
}

func (s *flakyStore) Get(ctx context.Context, key string) (int64, bool, error) {
	if err := s.fail(wrapRedisErr("get", context.DeadlineExceeded)); err != nil {
		return 0, false, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Ping(ctx context.Context) error {
	if err := s.fail(wrapRedisErr("ping", context.DeadlineExceeded)); err != nil {
		return err
	}
	return nil
}

func newTestFailover(remote Store) (*FailoverStore, *MemoryStore) {
	local := NewMemoryStore(nil)
	retrier := retry.NewExecutor(retry.Config{
		MaxRetries: 1,
		BaseDelay:  time.Microsecond,
		MaxDelay:   time.Microsecond,
		Retryable:  IsTransient,
	})
	breaker := retry.NewCircuitBreaker(retry.BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Hour,
	}, clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))

	return NewFailoverStore(remote, local, FailoverOptions{
		Breaker:       breaker,
		Retrier:       retrier,
		ProbeInterval: time.Hour,
	}), local
}

func TestFailoverHealthyRemoteServes(t *testing.T) {
	remote := newFlakyStore()
	f, local := newTestFailover(remote)
	ctx := context.Background()

	value, err := f.IncrementWithExpiry(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("IncrementWithExpiry() error = %v", err)
	}
	if value != 1 {
		t.Errorf("value = %d, want 1", value)
	}
	if f.Degraded() {
		t.Error("store degraded with a healthy remote")
	}

	// The local store must stay untouched.
	if _, ok, _ := local.Get(ctx, "k"); ok {
		t.Error("local store was written while remote healthy")
	}
}

func TestFailoverEngagesFallbackOnRemoteFailure(t *testing.T) {
	remote := newFlakyStore()
	remote.failing.Store(true)
	f, local := newTestFailover(remote)
	ctx := context.Background()

	value, err := f.IncrementWithExpiry(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("IncrementWithExpiry() error = %v, want fallback success", err)
	}
	if value != 1 {
		t.Errorf("value = %d, want 1", value)
	}
	if !f.Degraded() {
		t.Fatal("store not degraded after remote failure")
	}
	if _, ok, _ := local.Get(ctx, "k"); !ok {
		t.Error("fallback store missing the counter")
	}
}

func TestFailoverSkipsRemoteWhileDegraded(t *testing.T) {
	remote := newFlakyStore()
	remote.failing.Store(true)
	f, _ := newTestFailover(remote)
	ctx := context.Background()

	f.IncrementWithExpiry(ctx, "k", time.Minute)
	callsAfterEngage := remote.calls.Load()

	f.Increment(ctx, "k")
	f.Get(ctx, "k")

	if got := remote.calls.Load(); got != callsAfterEngage {
		t.Errorf("remote called %d times while degraded, want 0", got-callsAfterEngage)
	}
}

func TestFailoverProbeRecovers(t *testing.T) {
	remote := newFlakyStore()
	remote.failing.Store(true)
	f, local := newTestFailover(remote)
	ctx := context.Background()

	f.IncrementWithExpiry(ctx, "k", time.Minute)
	if !f.Degraded() {
		t.Fatal("precondition: store not degraded")
	}

	// Probe while remote is still down: stays degraded.
	f.Probe(ctx)
	if !f.Degraded() {
		t.Fatal("probe recovered while remote still failing")
	}

	// Remote comes back; probe must restore routing and drop stale
	// fallback counters.
	remote.failing.Store(false)
	f.Probe(ctx)
	if f.Degraded() {
		t.Fatal("probe did not recover after remote became healthy")
	}
	if _, ok, _ := local.Get(ctx, "k"); ok {
		t.Error("stale fallback counter survived recovery")
	}

	// Traffic reaches the remote again.
	value, err := f.IncrementWithExpiry(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("IncrementWithExpiry() after recovery error = %v", err)
	}
	if value != 1 {
		t.Errorf("remote counter after recovery = %d, want 1", value)
	}
	if remoteValue, ok, _ := remote.MemoryStore.Get(ctx, "k"); !ok || remoteValue != 1 {
		t.Errorf("remote store value = %d, %v; want 1, true", remoteValue, ok)
	}
}

func TestFailoverNonDegradedProbeIsNoOp(t *testing.T) {
	remote := newFlakyStore()
	f, _ := newTestFailover(remote)

	before := remote.calls.Load()
	f.Probe(context.Background())
	if got := remote.calls.Load(); got != before {
		t.Errorf("probe pinged remote while healthy (%d calls)", got-before)
	}
}
