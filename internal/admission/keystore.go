package admission

import (
	"sync"
	"time"
)

// EventKeyStore is a bounded sliding-window map of opaque event keys to the
// time they were first seen. It caps the number of tracked keys to prevent
// memory exhaustion under sustained traffic and ages entries out regardless
// of count. Safe for concurrent use; all operations are O(1) map work behind
// a single mutex.
type EventKeyStore struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	entries  map[string]time.Time
	order    []keyAt // insertion order for oldest-first eviction
}

type keyAt struct {
	key string
	at  time.Time
}

// NewEventKeyStore creates a store holding at most capacity keys, each for at
// most maxAge.
func NewEventKeyStore(capacity int, maxAge time.Duration) *EventKeyStore {
	if capacity <= 0 {
		capacity = 1000
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &EventKeyStore{
		capacity: capacity,
		maxAge:   maxAge,
		entries:  make(map[string]time.Time),
	}
}

// Seen reports whether key was previously recorded. If not, it records the
// key with the current timestamp as a side effect.
func (s *EventKeyStore) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.pruneLocked(now)

	if _, ok := s.entries[key]; ok {
		return true
	}
	s.recordLocked(key, now)
	s.pruneLocked(now)
	return false
}

// SeenWithin reports whether key was recorded within the given window. When
// the key is absent, or present but older than the window, it is (re)recorded
// with the current timestamp and false is returned.
func (s *EventKeyStore) SeenWithin(key string, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.pruneLocked(now)

	if at, ok := s.entries[key]; ok && now.Sub(at) < window {
		return true
	}
	s.recordLocked(key, now)
	s.pruneLocked(now)
	return false
}

// Prune removes entries older than maxAge and evicts oldest entries beyond
// capacity. Called implicitly on every write; exposed for periodic sweeps.
func (s *EventKeyStore) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(time.Now())
}

// Len returns the number of tracked keys.
func (s *EventKeyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset drops all tracked keys.
func (s *EventKeyStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
	s.order = nil
}

func (s *EventKeyStore) recordLocked(key string, now time.Time) {
	s.entries[key] = now
	s.order = append(s.order, keyAt{key: key, at: now})
}

// pruneLocked pops from the front of the insertion order. Entries whose map
// timestamp no longer matches are stale duplicates from a re-record and are
// skipped. Caller holds s.mu.
func (s *EventKeyStore) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	for len(s.order) > 0 {
		head := s.order[0]
		at, ok := s.entries[head.key]
		if ok && at.Equal(head.at) {
			if !head.at.Before(cutoff) && len(s.entries) <= s.capacity {
				break
			}
			delete(s.entries, head.key)
		}
		s.order = s.order[1:]
	}
}
