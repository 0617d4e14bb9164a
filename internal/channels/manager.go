package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/novafond/advisorbot/internal/bus"
)

// Manager owns all registered channels: lifecycle plus outbound routing by
// channel name. One failed channel never blocks the others from starting.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewManager creates an empty channel manager.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// Register adds a channel. Later registrations with the same name win.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// StartAll starts every registered channel, isolating per-channel failures.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		return fmt.Errorf("no channels configured")
	}

	started := 0
	for name, ch := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := ch.Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
			continue
		}
		started++
	}
	if started == 0 {
		return fmt.Errorf("all channels failed to start")
	}
	return nil
}

// StopAll gracefully stops every running channel.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			slog.Warn("failed to stop channel", "channel", name, "error", err)
		}
	}
}

// Send routes an outbound message to the channel it names.
func (m *Manager) Send(ctx context.Context, msg bus.OutboundMessage) error {
	m.mu.RLock()
	ch, ok := m.channels[msg.Channel]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown channel %q", msg.Channel)
	}
	return ch.Send(ctx, msg)
}
