// Package discord connects the bot to Discord via gateway events. Text
// messages and button interactions are mapped onto the same inbound event
// shape the admission core consumes for Telegram.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/novafond/advisorbot/internal/bus"
	"github.com/novafond/advisorbot/internal/channels"
	"github.com/novafond/advisorbot/internal/config"
)

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	botUserID string // populated on start
}

// New creates a new Discord channel from config.
func New(cfg config.DiscordConfig, sink channels.EventSink) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", sink, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}, nil
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting discord bot")

	c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		c.handleMessage(ctx, m)
	})
	c.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		c.handleInteraction(ctx, i)
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")
	c.SetRunning(false)
	return c.session.Close()
}

// Send delivers an outbound message to a Discord channel.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	channelID := strconv.FormatInt(msg.ChatID, 10)
	if _, err := c.session.ChannelMessageSend(channelID, msg.Content); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func (c *Channel) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.botUserID || m.Author.Bot {
		return
	}
	if m.Content == "" {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		return
	}

	chatID := parseSnowflake(m.ChannelID)

	slog.Debug("discord message received",
		"channel_id", m.ChannelID,
		"user_id", m.Author.ID,
		"text_preview", channels.Truncate(m.Content, 60),
	)

	c.Sink().Dispatch(ctx, bus.InboundEvent{
		Channel:   c.Name(),
		ChatID:    chatID,
		SenderID:  m.Author.ID,
		EventID:   "m" + m.ID,
		Kind:      bus.KindMessage,
		Payload:   m.Content,
		Timestamp: m.Timestamp,
	})
}

// handleInteraction maps button presses to callback events. The interaction
// is always acked with a deferred update — suppressed or not — so the
// Discord client does not show "interaction failed".
func (c *Channel) handleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	defer func() {
		if err := c.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}); err != nil {
			slog.Debug("discord interaction ack failed", "error", err)
		}
	}()

	senderID := ""
	if i.Member != nil && i.Member.User != nil {
		senderID = i.Member.User.ID
	} else if i.User != nil {
		senderID = i.User.ID
	}
	if senderID == "" || !c.IsAllowed(senderID) {
		return
	}

	data := i.MessageComponentData()
	chatID := parseSnowflake(i.ChannelID)

	decision := c.Sink().Dispatch(ctx, bus.InboundEvent{
		Channel:   c.Name(),
		ChatID:    chatID,
		SenderID:  senderID,
		EventID:   "cb" + i.ID,
		Kind:      bus.KindCallback,
		Payload:   data.CustomID,
		Timestamp: time.Now(),
	})
	if !decision.Admitted {
		slog.Debug("discord interaction suppressed",
			"channel_id", i.ChannelID, "reason", decision.Reason)
	}
}

// parseSnowflake coerces a Discord snowflake id to int64. Malformed ids map
// to 0 rather than failing: the admission layer treats chat 0 as any other.
func parseSnowflake(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
