// Package clock provides an injectable time source.
//
// Window-boundary logic (calendar resets, TTL expiry, circuit breaker
// cool-downs) must be testable without sleeping, so every component that
// reads the wall clock takes a TimeSource instead of calling time.Now
// directly.
package clock

import (
	"sync"
	"time"
)

// TimeSource supplies the current time.
type TimeSource interface {
	// Now returns the current time.
	Now() time.Time
}

// System is a TimeSource backed by the real wall clock.
var System TimeSource = systemTimeSource{}

type systemTimeSource struct{}

// Now returns the current system time.
func (systemTimeSource) Now() time.Time {
	return time.Now()
}

// Fake is a manually-advanced TimeSource for tests.
//
// The zero value is not usable; create instances with NewFake. All
// methods are safe for concurrent use.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake anchored at the given time.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set moves the fake clock to the given instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
