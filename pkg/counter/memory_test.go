package counter

import (
	"context"
	"testing"
	"time"

	"mailcove/gatekeeper/pkg/clock"
)

func newTestMemoryStore() (*MemoryStore, *clock.Fake) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewMemoryStore(fake), fake
}

func TestMemoryIncrement(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.Increment(ctx, "k")
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
		if got != want {
			t.Errorf("Increment() = %d, want %d", got, want)
		}
	}
}

func TestMemoryIncrementWithExpirySetsTTLOnlyOnCreate(t *testing.T) {
	s, fake := newTestMemoryStore()
	ctx := context.Background()

	if _, err := s.IncrementWithExpiry(ctx, "k", 60*time.Second); err != nil {
		t.Fatalf("IncrementWithExpiry() error = %v", err)
	}

	fake.Advance(30 * time.Second)
	if _, err := s.IncrementWithExpiry(ctx, "k", 60*time.Second); err != nil {
		t.Fatalf("second IncrementWithExpiry() error = %v", err)
	}

	// The second increment must not extend the original expiry.
	ttl, ok, err := s.TTL(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("TTL() = %v, %v, %v", ttl, ok, err)
	}
	if ttl != 30*time.Second {
		t.Errorf("TTL after re-increment = %v, want 30s", ttl)
	}
}

func TestMemoryExpiryOnGet(t *testing.T) {
	s, fake := newTestMemoryStore()
	ctx := context.Background()

	s.IncrementWithExpiry(ctx, "k", 10*time.Second)

	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("Get() before expiry: key absent")
	}

	fake.Advance(10 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("Get() after expiry: key still present")
	}
}

func TestMemoryExpiredKeyRecreatedWithFreshCount(t *testing.T) {
	s, fake := newTestMemoryStore()
	ctx := context.Background()

	s.IncrementWithExpiry(ctx, "k", 10*time.Second)
	s.Increment(ctx, "k")
	fake.Advance(11 * time.Second)

	got, err := s.IncrementWithExpiry(ctx, "k", 10*time.Second)
	if err != nil {
		t.Fatalf("IncrementWithExpiry() error = %v", err)
	}
	if got != 1 {
		t.Errorf("count after expiry = %d, want 1 (fresh window)", got)
	}
}

func TestMemoryGetAbsentKey(t *testing.T) {
	s, _ := newTestMemoryStore()
	value, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || value != 0 {
		t.Errorf("Get(missing) = %d, %v; want 0, false", value, ok)
	}
}

func TestMemoryTTLAbsentForKeyWithoutExpiry(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()

	s.Increment(ctx, "k")
	_, ok, err := s.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ok {
		t.Error("TTL() reported an expiry for a key created without one")
	}
}

func TestMemoryPurgeExpired(t *testing.T) {
	s, fake := newTestMemoryStore()
	ctx := context.Background()

	s.IncrementWithExpiry(ctx, "a", 10*time.Second)
	s.IncrementWithExpiry(ctx, "b", 20*time.Second)
	s.Increment(ctx, "c")

	fake.Advance(15 * time.Second)
	if purged := s.PurgeExpired(); purged != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", purged)
	}
	if _, ok, _ := s.Get(ctx, "b"); !ok {
		t.Error("unexpired key b was purged")
	}
	if _, ok, _ := s.Get(ctx, "c"); !ok {
		t.Error("non-expiring key c was purged")
	}
}

func TestMemoryConcurrentIncrements(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()

	const goroutines = 50
	const perGoroutine = 20

	done := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < perGoroutine; j++ {
				s.Increment(ctx, "shared")
			}
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}

	value, ok, err := s.Get(ctx, "shared")
	if err != nil || !ok {
		t.Fatalf("Get() = %d, %v, %v", value, ok, err)
	}
	if value != goroutines*perGoroutine {
		t.Errorf("final count = %d, want %d", value, goroutines*perGoroutine)
	}
}
