package counter

import (
	"context"
	"sync"
	"time"

	"mailcove/gatekeeper/pkg/clock"
)

// MemoryStore implements Store with an in-process map.
//
// It provides the same single-key atomicity as the remote store (via a
// process-wide mutex) but no cross-process coordination: every process
// counts alone. It exists solely as the availability-over-consistency
// degradation behind FailoverStore.
//
// Expired entries are purged lazily on access; PurgeExpired may be
// called to reclaim memory eagerly.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	clock   clock.TimeSource
}

type memoryEntry struct {
	count int64

	// expiresAt is the wall-clock expiry; zero means no expiry.
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
// A nil ts uses the system clock.
func NewMemoryStore(ts clock.TimeSource) *MemoryStore {
	if ts == nil {
		ts = clock.System
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		clock:   ts,
	}
}

// Increment implements Store.Increment.
func (s *MemoryStore) Increment(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.liveEntryLocked(key)
	if entry == nil {
		entry = &memoryEntry{}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, nil
}

// IncrementWithExpiry implements Store.IncrementWithExpiry.
func (s *MemoryStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.liveEntryLocked(key)
	if entry == nil {
		entry = &memoryEntry{expiresAt: s.clock.Now().Add(ttl)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.liveEntryLocked(key)
	if entry == nil {
		return 0, false, nil
	}
	return entry.count, true, nil
}

// TTL implements Store.TTL.
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.liveEntryLocked(key)
	if entry == nil || entry.expiresAt.IsZero() {
		return 0, false, nil
	}
	return entry.expiresAt.Sub(s.clock.Now()), true, nil
}

// Ping implements Store.Ping. The process-local store is always healthy.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*memoryEntry)
	return nil
}

// PurgeExpired removes all expired entries and returns how many were dropped.
func (s *MemoryStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	purged := 0
	for key, entry := range s.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged
}

// liveEntryLocked returns the entry for key, deleting it first if it
// has expired. Caller must hold s.mu.
func (s *MemoryStore) liveEntryLocked(key string) *memoryEntry {
	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return entry
}
