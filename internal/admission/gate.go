// Package admission decides, for every inbound chat event, whether it is a
// genuine new user action that must reach business logic or a duplicate,
// retry, or loop that must be suppressed. It owns the event key store and the
// per-chat circuit breaker; navigation history is consulted through the
// tracker so that legitimate rapid re-navigation is never a false positive.
package admission

import (
	"strings"
	"sync"
	"time"

	"github.com/novafond/advisorbot/internal/navigation"
)

// Classifier tells navigational (idempotent, safely repeatable) actions apart
// from stateful ones. Supplied by the caller; the gate hard-codes no business
// vocabulary.
type Classifier interface {
	IsNavigational(payload string) bool
}

// PrefixClassifier classifies by payload prefixes and exact literals.
// Safe for concurrent use; Update allows hot reload from config.
type PrefixClassifier struct {
	mu       sync.RWMutex
	prefixes []string
	literals map[string]struct{}
}

// NewPrefixClassifier creates a classifier from prefix and literal lists.
func NewPrefixClassifier(prefixes, literals []string) *PrefixClassifier {
	c := &PrefixClassifier{}
	c.Update(prefixes, literals)
	return c
}

// IsNavigational reports whether the payload matches a configured prefix or
// literal.
func (c *PrefixClassifier) IsNavigational(payload string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.literals[payload]; ok {
		return true
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(payload, p) {
			return true
		}
	}
	return false
}

// Update replaces the configured prefixes and literals.
func (c *PrefixClassifier) Update(prefixes, literals []string) {
	lits := make(map[string]struct{}, len(literals))
	for _, l := range literals {
		lits[l] = struct{}{}
	}
	c.mu.Lock()
	c.prefixes = append([]string(nil), prefixes...)
	c.literals = lits
	c.mu.Unlock()
}

// Config holds the gate's timing and capacity knobs.
type Config struct {
	MaxTrackedKeys   int           // event key store capacity (default 1000)
	MaxKeyAge        time.Duration // event key retention (default 30s)
	StatefulCooldown time.Duration // identical stateful content window (default 1s)
	BreakerDuration  time.Duration // chat lock after a loop signal (default 2s)
}

func (c Config) withDefaults() Config {
	if c.MaxTrackedKeys <= 0 {
		c.MaxTrackedKeys = 1000
	}
	if c.MaxKeyAge <= 0 {
		c.MaxKeyAge = 30 * time.Second
	}
	if c.StatefulCooldown <= 0 {
		c.StatefulCooldown = time.Second
	}
	if c.BreakerDuration <= 0 {
		c.BreakerDuration = 2 * time.Second
	}
	return c
}

// Suppression reasons reported in Decision.Reason.
const (
	ReasonOK               = "ok"
	ReasonOscillation      = "oscillation" // legitimate A,B,A re-navigation
	ReasonChatLocked       = "chat_locked"
	ReasonDuplicateEvent   = "duplicate_event"
	ReasonStatefulCooldown = "stateful_cooldown"
)

// Decision is the admission result for one inbound event.
type Decision struct {
	Admitted bool
	Pattern  navigation.Pattern // detected pattern at admission time (may be none)
	Reason   string
}

// Gate implements the admission algorithm. It exclusively owns its key store
// and breaker; the navigation tracker is shared with the dispatcher for
// session resets. Every public operation returns a definite result and never
// an error: malformed input is coerced and the gate fails open.
type Gate struct {
	cfg        Config
	classifier Classifier
	keys       *EventKeyStore
	breaker    *ChatCircuitBreaker
	tracker    *navigation.Tracker
}

// NewGate creates a gate. classifier may be nil, in which case every action
// is treated as stateful.
func NewGate(cfg Config, classifier Classifier, tracker *navigation.Tracker) *Gate {
	cfg = cfg.withDefaults()
	if tracker == nil {
		tracker = navigation.NewTracker(navigation.Config{}, nil)
	}
	return &Gate{
		cfg:        cfg,
		classifier: classifier,
		keys:       NewEventKeyStore(cfg.MaxTrackedKeys, cfg.MaxKeyAge),
		breaker:    NewChatCircuitBreaker(),
		tracker:    tracker,
	}
}

// Admit decides whether the event reaches business logic. On admission it
// records both dedup keys and the navigation step.
func (g *Gate) Admit(chatID int64, eventID, payload string) Decision {
	navigational := g.classifier != nil && g.classifier.IsNavigational(payload)

	// Navigational actions are never subject to the breaker.
	if !navigational && g.breaker.IsLocked(chatID) {
		return Decision{Reason: ReasonChatLocked}
	}

	// Exact retry of the same physical event. An empty event id means the
	// platform gave us none; content fingerprinting below still applies.
	if eventID != "" && g.keys.Seen(IDKey(chatID, eventID)) {
		return Decision{Reason: ReasonDuplicateEvent}
	}

	contentKey := ContentKey(chatID, payload)

	if !navigational {
		// Identical stateful content inside the cooldown window is the
		// strongest loop signal: suppress and lock the whole chat.
		if g.keys.SeenWithin(contentKey, g.cfg.StatefulCooldown) {
			g.breaker.Trip(chatID, g.cfg.BreakerDuration)
			return Decision{Reason: ReasonStatefulCooldown}
		}
		g.tracker.Record(chatID, payload)
		return Decision{Admitted: true, Pattern: navigation.PatternNone, Reason: ReasonOK}
	}

	// Navigational: always admitted. Pattern detection runs against the
	// history before this step so the caller can react to oscillation.
	pattern := g.tracker.DetectPattern(chatID)
	reason := ReasonOK
	if pattern == navigation.PatternBackForth {
		if hist := g.tracker.History(chatID, 3); len(hist) == 3 && hist[2].Action == payload {
			// User deliberately bouncing between two screens.
			reason = ReasonOscillation
		}
	}

	g.keys.SeenWithin(contentKey, g.cfg.StatefulCooldown) // record content key
	g.tracker.Record(chatID, payload)
	return Decision{Admitted: true, Pattern: pattern, Reason: reason}
}

// Trip exposes the breaker for callers that detect loops through out-of-band
// signals (e.g. handler-side repetition).
func (g *Gate) Trip(chatID int64) {
	g.breaker.Trip(chatID, g.cfg.BreakerDuration)
}

// IsLocked reports whether the chat is currently suppressed by the breaker.
func (g *Gate) IsLocked(chatID int64) bool {
	return g.breaker.IsLocked(chatID)
}

// IsDuplicate is the tracker's stricter duplicate signal, exposed for
// diagnostics.
func (g *Gate) IsDuplicate(chatID int64, payload string) bool {
	return g.tracker.IsDuplicate(chatID, payload)
}

// ResetAll clears dedup, lock, and navigation state. Used by test harnesses
// and as an operational escape hatch.
func (g *Gate) ResetAll() {
	g.keys.Reset()
	g.breaker.ResetAll()
	g.tracker.ResetAll()
}

// Metrics is a point-in-time snapshot of the gate's table sizes. Used for
// observability, not correctness.
type Metrics struct {
	TrackedKeys     int `json:"tracked_keys"`
	ActiveChatLocks int `json:"active_chat_locks"`
	NavigationChats int `json:"navigation_chats"`
	NavigationSteps int `json:"navigation_steps"`
}

// MetricsSnapshot returns current table sizes.
func (g *Gate) MetricsSnapshot() Metrics {
	chats, steps := g.tracker.Sizes()
	return Metrics{
		TrackedKeys:     g.keys.Len(),
		ActiveChatLocks: g.breaker.ActiveLocks(),
		NavigationChats: chats,
		NavigationSteps: steps,
	}
}
