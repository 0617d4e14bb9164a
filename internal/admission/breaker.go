package admission

import (
	"sync"
	"time"
)

// ChatCircuitBreaker suppresses all stateful admissions for a chat for a
// short, bounded duration after a loop is detected. Release is always
// time-driven: a single sweep timer, re-armed to the earliest pending expiry,
// clears locks — no per-lock timers, no explicit release path, so a lock can
// never outlive its duration even if the tripping request died.
type ChatCircuitBreaker struct {
	mu    sync.Mutex
	locks map[int64]time.Time // chatID → lockedUntil
	timer *time.Timer
}

// NewChatCircuitBreaker creates a breaker with no locked chats.
func NewChatCircuitBreaker() *ChatCircuitBreaker {
	return &ChatCircuitBreaker{locks: make(map[int64]time.Time)}
}

// Trip locks the chat for the given duration. Tripping an already locked
// chat extends the lock only if the new expiry is later.
func (b *ChatCircuitBreaker) Trip(chatID int64, duration time.Duration) {
	if duration <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	until := time.Now().Add(duration)
	if existing, ok := b.locks[chatID]; !ok || until.After(existing) {
		b.locks[chatID] = until
	}
	b.armLocked()
}

// IsLocked reports whether the chat is currently suppressed. Expired entries
// are reclaimed lazily, so a sweep that has not fired yet never produces a
// false positive.
func (b *ChatCircuitBreaker) IsLocked(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.locks[chatID]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(b.locks, chatID)
		return false
	}
	return true
}

// ActiveLocks returns the number of chats currently locked.
func (b *ChatCircuitBreaker) ActiveLocks() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	n := 0
	for _, until := range b.locks {
		if now.Before(until) {
			n++
		}
	}
	return n
}

// ResetAll clears all breaker state. A sweep firing after ResetAll is a
// no-op: releasing an already-open breaker is idempotent.
func (b *ChatCircuitBreaker) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.locks = make(map[int64]time.Time)
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// armLocked (re)schedules the sweep timer for the earliest expiry.
// Caller holds b.mu.
func (b *ChatCircuitBreaker) armLocked() {
	var earliest time.Time
	for _, until := range b.locks {
		if earliest.IsZero() || until.Before(earliest) {
			earliest = until
		}
	}
	if earliest.IsZero() {
		return
	}

	d := time.Until(earliest)
	if d < 0 {
		d = 0
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(d, b.sweep)
	} else {
		b.timer.Reset(d)
	}
}

// sweep removes expired locks and re-arms for the next expiry, if any.
func (b *ChatCircuitBreaker) sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for chatID, until := range b.locks {
		if now.After(until) || now.Equal(until) {
			delete(b.locks, chatID)
		}
	}
	b.armLocked()
}
