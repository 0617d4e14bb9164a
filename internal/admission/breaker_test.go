package admission

import (
	"testing"
	"time"
)

// TestBreaker_TripAndSelfHeal verifies that a tripped chat is locked for the
// given duration and unlocks on its own afterwards, with no release call.
func TestBreaker_TripAndSelfHeal(t *testing.T) {
	b := NewChatCircuitBreaker()
	d := 80 * time.Millisecond

	b.Trip(7, d)
	if !b.IsLocked(7) {
		t.Fatal("chat should be locked immediately after trip")
	}
	if b.IsLocked(8) {
		t.Fatal("unrelated chat should not be locked")
	}

	time.Sleep(d + 40*time.Millisecond)
	if b.IsLocked(7) {
		t.Fatal("lock should have expired")
	}
	if n := b.ActiveLocks(); n != 0 {
		t.Fatalf("expected 0 active locks, got %d", n)
	}
}

// TestBreaker_TripExtendsOnlyForward verifies that re-tripping an already
// locked chat never shortens the remaining lock.
func TestBreaker_TripExtendsOnlyForward(t *testing.T) {
	b := NewChatCircuitBreaker()

	b.Trip(1, 200*time.Millisecond)
	b.Trip(1, 20*time.Millisecond) // shorter: must not shorten the lock

	time.Sleep(80 * time.Millisecond)
	if !b.IsLocked(1) {
		t.Fatal("shorter re-trip must not cut the existing lock short")
	}

	b.Trip(2, 40*time.Millisecond)
	b.Trip(2, 200*time.Millisecond) // longer: extends
	time.Sleep(100 * time.Millisecond)
	if !b.IsLocked(2) {
		t.Fatal("longer re-trip should have extended the lock")
	}
}

// TestBreaker_SweepClearsEarliestFirst verifies that the sweep timer clears
// locks independently per chat as each expiry passes.
func TestBreaker_SweepClearsEarliestFirst(t *testing.T) {
	b := NewChatCircuitBreaker()

	b.Trip(1, 50*time.Millisecond)
	b.Trip(2, 200*time.Millisecond)

	time.Sleep(110 * time.Millisecond)
	if b.IsLocked(1) {
		t.Fatal("earliest lock should have been cleared")
	}
	if !b.IsLocked(2) {
		t.Fatal("later lock must survive the first sweep")
	}

	time.Sleep(150 * time.Millisecond)
	if b.IsLocked(2) {
		t.Fatal("second lock should have expired")
	}
}

// TestBreaker_ResetAllIdempotent verifies that resetting an open breaker is a
// no-op and that a pending sweep after reset does not panic or relock.
func TestBreaker_ResetAllIdempotent(t *testing.T) {
	b := NewChatCircuitBreaker()

	b.ResetAll() // open breaker: no-op

	b.Trip(1, 50*time.Millisecond)
	b.ResetAll()
	if b.IsLocked(1) {
		t.Fatal("reset should have cleared the lock")
	}
	b.ResetAll() // releasing again is idempotent

	// Let any stray timer fire; state must remain empty.
	time.Sleep(80 * time.Millisecond)
	if n := b.ActiveLocks(); n != 0 {
		t.Fatalf("expected 0 active locks after reset, got %d", n)
	}
}

// TestBreaker_ZeroDurationIgnored verifies that a non-positive duration never
// locks anything.
func TestBreaker_ZeroDurationIgnored(t *testing.T) {
	b := NewChatCircuitBreaker()
	b.Trip(1, 0)
	b.Trip(1, -time.Second)
	if b.IsLocked(1) {
		t.Fatal("non-positive trip duration must not lock the chat")
	}
}
