package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mymmrac/telego"

	"github.com/novafond/advisorbot/internal/bus"
	"github.com/novafond/advisorbot/internal/channels"
)

// handleMessage converts an incoming text message into an inbound event.
func (c *Channel) handleMessage(ctx context.Context, update telego.Update) {
	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	user := message.From
	if user == nil {
		return
	}

	senderID := fmt.Sprintf("%d", user.ID)
	if user.Username != "" {
		senderID = fmt.Sprintf("%d|%s", user.ID, user.Username)
	}
	if !c.IsAllowed(senderID) {
		slog.Debug("telegram message rejected by allowlist",
			"user_id", user.ID, "username", user.Username, "chat_id", message.Chat.ID)
		return
	}

	slog.Debug("telegram message received",
		"chat_id", message.Chat.ID,
		"user_id", user.ID,
		"text_preview", channels.Truncate(message.Text, 60),
	)

	c.Sink().Dispatch(ctx, bus.InboundEvent{
		Channel:   c.Name(),
		ChatID:    message.Chat.ID,
		SenderID:  senderID,
		EventID:   "m" + strconv.Itoa(message.MessageID),
		Kind:      bus.KindMessage,
		Payload:   message.Text,
		Timestamp: time.Unix(message.Date, 0),
	})
}

// handleCallbackQuery converts a button press into an inbound event. The
// query is always answered — even when the event is suppressed — so the
// client's loading spinner clears instead of hanging until Telegram's own
// timeout.
func (c *Channel) handleCallbackQuery(ctx context.Context, query *telego.CallbackQuery) {
	defer func() {
		if err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: query.ID,
		}); err != nil {
			slog.Debug("telegram callback answer failed", "error", err)
		}
	}()

	if query.Message == nil {
		// Message too old for Telegram to reference; nothing to route to.
		slog.Debug("telegram callback without message", "callback_id", query.ID)
		return
	}

	senderID := fmt.Sprintf("%d", query.From.ID)
	if query.From.Username != "" {
		senderID = fmt.Sprintf("%d|%s", query.From.ID, query.From.Username)
	}
	if !c.IsAllowed(senderID) {
		return
	}

	chatID := query.Message.GetChat().ID

	slog.Debug("telegram callback received",
		"chat_id", chatID,
		"user_id", query.From.ID,
		"data", channels.Truncate(query.Data, 60),
	)

	decision := c.Sink().Dispatch(ctx, bus.InboundEvent{
		Channel:   c.Name(),
		ChatID:    chatID,
		SenderID:  senderID,
		EventID:   "cb" + query.ID,
		Kind:      bus.KindCallback,
		Payload:   query.Data,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"message_id": strconv.Itoa(query.Message.GetMessageID()),
		},
	})
	if !decision.Admitted {
		slog.Debug("telegram callback suppressed",
			"chat_id", chatID, "reason", decision.Reason)
	}
}
