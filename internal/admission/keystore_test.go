package admission

import (
	"fmt"
	"testing"
	"time"
)

// TestKeyStore_SeenRecordsOnMiss verifies that the first lookup of a key
// reports unseen and records it, and that the second lookup reports seen.
func TestKeyStore_SeenRecordsOnMiss(t *testing.T) {
	s := NewEventKeyStore(100, time.Minute)

	if s.Seen("id:1:m42") {
		t.Fatal("first lookup should be a miss")
	}
	if !s.Seen("id:1:m42") {
		t.Fatal("second lookup should be a hit")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 tracked key, got %d", s.Len())
	}
}

// TestKeyStore_SeenWithinWindow verifies the sliding-window semantics: a hit
// inside the window, a miss (with re-record) after the window elapses.
func TestKeyStore_SeenWithinWindow(t *testing.T) {
	s := NewEventKeyStore(100, time.Minute)
	window := 50 * time.Millisecond

	if s.SeenWithin("fp:1:abc", window) {
		t.Fatal("first lookup should be a miss")
	}
	if !s.SeenWithin("fp:1:abc", window) {
		t.Fatal("immediate repeat should be a hit")
	}

	time.Sleep(window + 20*time.Millisecond)

	if s.SeenWithin("fp:1:abc", window) {
		t.Fatal("lookup after the window elapsed should be a miss")
	}
	// The miss re-recorded the key, so the next lookup hits again.
	if !s.SeenWithin("fp:1:abc", window) {
		t.Fatal("repeat after re-record should be a hit")
	}
}

// TestKeyStore_CapacityBound verifies that the store never holds more than
// its configured capacity, evicting oldest entries first.
func TestKeyStore_CapacityBound(t *testing.T) {
	const capacity = 50
	s := NewEventKeyStore(capacity, time.Minute)

	for i := 0; i < capacity*10; i++ {
		s.Seen(fmt.Sprintf("id:1:m%d", i))
		if n := s.Len(); n > capacity {
			t.Fatalf("store grew to %d entries, cap is %d", n, capacity)
		}
	}
	if s.Len() != capacity {
		t.Fatalf("expected exactly %d entries after overflow, got %d", capacity, s.Len())
	}

	// The newest key survived eviction; the oldest did not.
	if !s.Seen(fmt.Sprintf("id:1:m%d", capacity*10-1)) {
		t.Fatal("newest key should still be tracked")
	}
	s.Reset()
	s.Seen("old")
	for i := 0; i < capacity; i++ {
		s.Seen(fmt.Sprintf("new%d", i))
	}
	if s.Seen("old") {
		t.Fatal("oldest key should have been evicted")
	}
}

// TestKeyStore_AgeExpiry verifies that entries older than maxAge are dropped
// on the next write regardless of capacity pressure.
func TestKeyStore_AgeExpiry(t *testing.T) {
	maxAge := 40 * time.Millisecond
	s := NewEventKeyStore(100, maxAge)

	s.Seen("stale")
	time.Sleep(maxAge + 20*time.Millisecond)

	if s.Seen("stale") {
		t.Fatal("expired key should read as unseen")
	}
}

// TestKeyStore_Prune verifies the explicit sweep entry point.
func TestKeyStore_Prune(t *testing.T) {
	maxAge := 40 * time.Millisecond
	s := NewEventKeyStore(100, maxAge)

	s.Seen("a")
	s.Seen("b")
	time.Sleep(maxAge + 20*time.Millisecond)

	s.Prune()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after prune, got %d entries", s.Len())
	}
}

// TestKeyStore_Reset verifies that Reset drops every tracked key.
func TestKeyStore_Reset(t *testing.T) {
	s := NewEventKeyStore(100, time.Minute)
	s.Seen("a")
	s.Seen("b")

	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after reset, got %d entries", s.Len())
	}
	if s.Seen("a") {
		t.Fatal("reset key should read as unseen")
	}
}
