package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/novafond/advisorbot/internal/bus"
	"github.com/novafond/advisorbot/internal/channels"
	"github.com/novafond/advisorbot/internal/config"
)

// sendBurst and sendPerSecond pace outbound sends under the Bot API's
// ~30 msg/s global ceiling.
const (
	sendPerSecond = 25
	sendBurst     = 5
)

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	config     config.TelegramConfig
	limiter    *rate.Limiter
	pollCancel context.CancelFunc // cancels the long polling context
	pollDone   chan struct{}      // closed when the polling goroutine exits
}

// New creates a new Telegram channel from config.
func New(cfg config.TelegramConfig, sink channels.EventSink) (*Channel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", sink, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
		limiter:     rate.NewLimiter(rate.Limit(sendPerSecond), sendBurst),
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"callback_query",
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				switch {
				case update.Message != nil:
					c.handleMessage(pollCtx, update)
				case update.CallbackQuery != nil:
					c.handleCallbackQuery(pollCtx, update.CallbackQuery)
				default:
					slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
				}
			}
		}
	}()

	return nil
}

// Stop shuts down the Telegram bot by cancelling the long polling context
// and waiting for the polling goroutine to exit, so that Telegram releases
// the getUpdates lock before another instance takes the lease.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}

	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}

// Send delivers an outbound message, paced by the rate limiter.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(msg.ChatID), msg.Content))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
