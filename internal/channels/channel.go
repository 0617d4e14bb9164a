// Package channels provides the channel abstraction layer that connects
// chat platforms (Telegram, Discord) to the admission core. Channels convert
// platform updates into inbound events, hand them to the event sink, and
// deliver outbound responses.
package channels

import (
	"context"
	"strings"

	"github.com/novafond/advisorbot/internal/admission"
	"github.com/novafond/advisorbot/internal/bus"
)

// EventSink receives every inbound event a channel produces and returns the
// admission decision, so channels can ack suppressed interactions (e.g.
// answer a Telegram callback query to clear the client spinner).
type EventSink interface {
	Dispatch(ctx context.Context, ev bus.InboundEvent) admission.Decision
}

// Channel defines the interface that all channel implementations satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "telegram", "discord").
	Name() string

	// Start begins listening for events. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is actively processing events.
	IsRunning() bool

	// IsAllowed checks if a sender is permitted by the channel's allowlist.
	IsAllowed(senderID string) bool
}

// BaseChannel provides shared functionality for channel implementations.
type BaseChannel struct {
	name      string
	sink      EventSink
	running   bool
	allowList []string
}

// NewBaseChannel creates a BaseChannel delivering events to sink.
func NewBaseChannel(name string, sink EventSink, allowList []string) *BaseChannel {
	return &BaseChannel{name: name, sink: sink, allowList: allowList}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// Sink returns the event sink.
func (c *BaseChannel) Sink() EventSink { return c.sink }

// IsRunning reports whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// IsAllowed checks if a sender is permitted by the allowlist. Supports a
// compound senderID format "123456|username". An empty allowlist means all
// senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		if senderID == allowed || senderID == trimmed ||
			idPart == allowed || idPart == trimmed ||
			(userPart != "" && (userPart == allowed || userPart == trimmed)) {
			return true
		}
	}
	return false
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
