package bus

import (
	"context"
	"time"
)

// Event kinds as delivered by chat platforms.
const (
	KindMessage  = "message"  // free-form text message
	KindCallback = "callback" // inline keyboard button press
)

// InboundEvent represents one user action received from a channel
// (Telegram, Discord, etc.) before any admission decision has been made.
type InboundEvent struct {
	Channel   string            `json:"channel"`
	ChatID    int64             `json:"chat_id"`
	SenderID  string            `json:"sender_id"`
	EventID   string            `json:"event_id"` // platform event id; empty = rely on content fingerprint
	Kind      string            `json:"kind"`     // KindMessage or KindCallback
	Payload   string            `json:"payload"`  // message text or callback data
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a response to be delivered back to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   int64             `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HandlerFunc is the business-logic entry point invoked for every admitted
// event. pattern carries the navigation pattern detected at admission time
// ("" or "none" means no pattern) so the handler can, for example, send a
// fresh message instead of editing a possibly stale one.
//
// The handler owns all rendering and persistence; the admission layer only
// guarantees it runs at most once per logical user action.
type HandlerFunc func(ctx context.Context, ev InboundEvent, pattern string) (OutboundMessage, error)
