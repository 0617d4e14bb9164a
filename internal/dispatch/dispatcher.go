// Package dispatch fans inbound events out to worker goroutines so a slow
// business-logic call in one chat cannot delay admission decisions for
// others. Each worker consults the admission gate before touching the
// handler; suppressed events never reach business logic.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/novafond/advisorbot/internal/admission"
	"github.com/novafond/advisorbot/internal/bus"
	"github.com/novafond/advisorbot/internal/navigation"
)

// Sender routes an outbound message back to its originating channel.
type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// defaultMaxWorkers bounds concurrent in-flight events.
const defaultMaxWorkers = 64

// Dispatcher admits and processes inbound events, one worker per event.
type Dispatcher struct {
	gate    *admission.Gate
	tracker *navigation.Tracker
	handler bus.HandlerFunc
	sender  Sender
	sem     chan struct{}
	wg      sync.WaitGroup
	tracer  trace.Tracer
}

// New creates a dispatcher. maxWorkers <= 0 uses the default cap.
func New(gate *admission.Gate, tracker *navigation.Tracker, handler bus.HandlerFunc, sender Sender, maxWorkers int) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &Dispatcher{
		gate:    gate,
		tracker: tracker,
		handler: handler,
		sender:  sender,
		sem:     make(chan struct{}, maxWorkers),
		tracer:  otel.Tracer("advisorbot/dispatch"),
	}
}

// Dispatch hands the event to a worker goroutine and returns immediately.
// Returns the admission decision so channels can ack suppressed callbacks.
func (d *Dispatcher) Dispatch(ctx context.Context, ev bus.InboundEvent) admission.Decision {
	decision := d.gate.Admit(ev.ChatID, ev.EventID, ev.Payload)

	if !decision.Admitted {
		slog.Debug("event suppressed",
			"channel", ev.Channel,
			"chat_id", ev.ChatID,
			"event_id", ev.EventID,
			"kind", ev.Kind,
			"reason", decision.Reason,
		)
		return decision
	}

	if d.gate.IsDuplicate(ev.ChatID, ev.Payload) {
		// Secondary signal only: the gate already admitted this event.
		slog.Debug("admitted event matches recent navigation step",
			"chat_id", ev.ChatID, "payload", ev.Payload)
	}

	d.wg.Add(1)
	d.sem <- struct{}{}
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		d.process(ctx, ev, decision)
	}()

	return decision
}

// process runs the business handler for one admitted event. Once admitted, a
// worker runs to completion; there is no per-event cancellation.
func (d *Dispatcher) process(ctx context.Context, ev bus.InboundEvent, decision admission.Decision) {
	ctx, span := d.tracer.Start(ctx, "event.process",
		trace.WithAttributes(
			attribute.String("channel", ev.Channel),
			attribute.Int64("chat_id", ev.ChatID),
			attribute.String("kind", ev.Kind),
			attribute.String("pattern", string(decision.Pattern)),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			// A handler failure mid-flow can leave the chat's navigation
			// session inconsistent; start a fresh one.
			slog.Error("handler panic, resetting navigation session",
				"chat_id", ev.ChatID, "panic", r)
			d.tracker.ResetSession(ev.ChatID)
		}
	}()

	start := time.Now()
	resp, err := d.handler(ctx, ev, string(decision.Pattern))
	if err != nil {
		slog.Error("handler failed",
			"channel", ev.Channel, "chat_id", ev.ChatID, "error", err)
		d.tracker.ResetSession(ev.ChatID)
		return
	}

	if resp.Content != "" {
		if resp.Channel == "" {
			resp.Channel = ev.Channel
		}
		if resp.ChatID == 0 {
			resp.ChatID = ev.ChatID
		}
		if sendErr := d.sender.Send(ctx, resp); sendErr != nil {
			slog.Error("outbound send failed",
				"channel", resp.Channel, "chat_id", resp.ChatID, "error", sendErr)
		}
	}

	slog.Debug("event processed",
		"channel", ev.Channel,
		"chat_id", ev.ChatID,
		"pattern", string(decision.Pattern),
		"took", time.Since(start),
	)
}

// Wait blocks until in-flight workers finish or the timeout elapses.
func (d *Dispatcher) Wait(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("dispatcher shutdown timed out with workers in flight")
	}
}
