// Package navigation keeps a bounded per-chat history of recent user
// navigation actions and classifies short-term movement patterns. The
// admission gate consults these patterns to tell a user deliberately
// bouncing between two screens apart from a bug-triggered loop.
package navigation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pattern classifies the shape of a chat's recent navigation.
type Pattern string

const (
	PatternNone          Pattern = "none"
	PatternBackForth     Pattern = "back_forth"     // A, B, A
	PatternCircular      Pattern = "circular"       // A, B, C, A
	PatternMenuSwitching Pattern = "menu_switching" // rapid hopping between menu roots
)

// Step is one recorded navigation action within a chat session.
type Step struct {
	ChatID    int64     `json:"chat_id"`
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	StepIndex int       `json:"step_index"`
}

// Config holds the tracker's retention and detection knobs.
type Config struct {
	MaxHistory      int           // steps retained per chat (default 20)
	PurgeThreshold  time.Duration // steps older than this are reclaimed (default 1h)
	DuplicateWindow time.Duration // IsDuplicate lookback (default 500ms)
}

func (c Config) withDefaults() Config {
	if c.MaxHistory <= 0 {
		c.MaxHistory = 20
	}
	if c.PurgeThreshold <= 0 {
		c.PurgeThreshold = time.Hour
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = 500 * time.Millisecond
	}
	return c
}

// purgeEvery bounds purge cost: the age-based sweep across all chats runs on
// every Nth insert rather than on each one.
const purgeEvery = 10

type chatHistory struct {
	sessionID string
	nextIndex int
	steps     []Step // ordered oldest → newest
}

// Tracker records navigation steps per chat. Safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	cfg        Config
	chats      map[int64]*chatHistory
	inserts    int
	isMenuRoot func(action string) bool
}

// NewTracker creates a tracker. isMenuRoot identifies menu-root navigational
// actions for menu_switching detection; nil defaults to the "menu_" prefix.
func NewTracker(cfg Config, isMenuRoot func(string) bool) *Tracker {
	if isMenuRoot == nil {
		isMenuRoot = func(action string) bool { return strings.HasPrefix(action, "menu_") }
	}
	return &Tracker{
		cfg:        cfg.withDefaults(),
		chats:      make(map[int64]*chatHistory),
		isMenuRoot: isMenuRoot,
	}
}

// Record appends a navigation step for the chat, assigning the next step
// index within the chat's current session. A session id is created lazily on
// the first step and persists until ResetSession.
func (t *Tracker) Record(chatID int64, action string) Step {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.chats[chatID]
	if !ok {
		ch = &chatHistory{sessionID: uuid.NewString()}
		t.chats[chatID] = ch
	}

	step := Step{
		ChatID:    chatID,
		SessionID: ch.sessionID,
		Action:    action,
		Timestamp: time.Now(),
		StepIndex: ch.nextIndex,
	}
	ch.nextIndex++
	ch.steps = append(ch.steps, step)

	// Hard cap enforced on every insert.
	if len(ch.steps) > t.cfg.MaxHistory {
		ch.steps = ch.steps[len(ch.steps)-t.cfg.MaxHistory:]
	}

	t.inserts++
	if t.inserts%purgeEvery == 0 {
		t.purgeLocked(time.Now().Add(-t.cfg.PurgeThreshold))
	}

	return step
}

// History returns up to n recent steps for a chat, most-recent-first.
// The result is a point-in-time snapshot.
func (t *Tracker) History(chatID int64, n int) []Step {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.chats[chatID]
	if !ok || n <= 0 {
		return nil
	}
	if n > len(ch.steps) {
		n = len(ch.steps)
	}

	out := make([]Step, 0, n)
	for i := len(ch.steps) - 1; i >= len(ch.steps)-n; i-- {
		out = append(out, ch.steps[i])
	}
	return out
}

// DetectPattern classifies the chat's last 3–5 steps. back_forth takes
// precedence over circular, which takes precedence over menu_switching.
func (t *Tracker) DetectPattern(chatID int64) Pattern {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.chats[chatID]
	if !ok {
		return PatternNone
	}
	steps := ch.steps
	n := len(steps)

	// back_forth: [i-2] and [i] equal, [i-1] differs (A, B, A).
	if n >= 3 {
		a, b, c := steps[n-3].Action, steps[n-2].Action, steps[n-1].Action
		if a == c && a != b {
			return PatternBackForth
		}
	}

	// circular: [i-3] equals [i] with at least 3 distinct actions in the last 4.
	if n >= 4 {
		last4 := steps[n-4:]
		if last4[0].Action == last4[3].Action {
			distinct := map[string]struct{}{}
			for _, s := range last4 {
				distinct[s.Action] = struct{}{}
			}
			if len(distinct) >= 3 {
				return PatternCircular
			}
		}
	}

	// menu_switching: at least 2 of the last 3 steps are menu roots.
	if n >= 3 {
		roots := 0
		for _, s := range steps[n-3:] {
			if t.isMenuRoot(s.Action) {
				roots++
			}
		}
		if roots >= 2 {
			return PatternMenuSwitching
		}
	}

	return PatternNone
}

// IsDuplicate reports whether an identical action was recorded for the chat
// within the duplicate window. This is a stricter, tracker-local signal,
// independent of the gate's own key-based dedup.
func (t *Tracker) IsDuplicate(chatID int64, action string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.chats[chatID]
	if !ok {
		return false
	}
	cutoff := time.Now().Add(-t.cfg.DuplicateWindow)
	for i := len(ch.steps) - 1; i >= 0; i-- {
		s := ch.steps[i]
		if s.Timestamp.Before(cutoff) {
			return false
		}
		if s.Action == action {
			return true
		}
	}
	return false
}

// ResetSession starts a new session id for the chat without deleting its
// history. Used for error recovery after a handler failure mid-flow.
func (t *Tracker) ResetSession(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.chats[chatID]
	if !ok {
		return
	}
	ch.sessionID = uuid.NewString()
	ch.nextIndex = 0
}

// ResetAll drops all navigation state.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chats = make(map[int64]*chatHistory)
	t.inserts = 0
}

// Sizes returns the tracked chat count and total retained steps.
func (t *Tracker) Sizes() (chats, steps int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.chats {
		steps += len(ch.steps)
	}
	return len(t.chats), steps
}

// purgeLocked drops steps older than cutoff and forgets empty chats.
// Caller holds t.mu.
func (t *Tracker) purgeLocked(cutoff time.Time) {
	for chatID, ch := range t.chats {
		i := 0
		for i < len(ch.steps) && ch.steps[i].Timestamp.Before(cutoff) {
			i++
		}
		if i > 0 {
			ch.steps = append(ch.steps[:0], ch.steps[i:]...)
		}
		if len(ch.steps) == 0 {
			delete(t.chats, chatID)
		}
	}
}
