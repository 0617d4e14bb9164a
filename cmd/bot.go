package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/novafond/advisorbot/internal/admission"
	"github.com/novafond/advisorbot/internal/bus"
	"github.com/novafond/advisorbot/internal/channels"
	"github.com/novafond/advisorbot/internal/channels/discord"
	"github.com/novafond/advisorbot/internal/channels/telegram"
	"github.com/novafond/advisorbot/internal/config"
	"github.com/novafond/advisorbot/internal/dispatch"
	"github.com/novafond/advisorbot/internal/instance"
	"github.com/novafond/advisorbot/internal/navigation"
	"github.com/novafond/advisorbot/internal/tracing"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	leaseStore, err := openLeaseStore(cfg.Instance)
	if err != nil {
		slog.Error("failed to open lease store", "error", err)
		os.Exit(1)
	}
	defer leaseStore.Close()

	// Become the sole poller before touching any channel. Two processes
	// polling the same bot token would each answer every user message once.
	coordinator := instance.NewCoordinator(leaseStore, cfg.Instance.CoordinatorConfig())
	if err := coordinator.WaitAcquire(ctx); err != nil {
		slog.Error("exiting: not the active instance", "error", err)
		os.Exit(1)
	}
	lost := coordinator.StartHeartbeat(ctx)

	classifier := admission.NewPrefixClassifier(
		cfg.Admission.NavigationalPrefixes,
		cfg.Admission.NavigationalLiterals,
	)
	menuRoot := cfg.Navigation.MenuRootPrefix
	tracker := navigation.NewTracker(cfg.Navigation.TrackerConfig(), func(action string) bool {
		return menuRoot != "" && strings.HasPrefix(action, menuRoot)
	})
	gate := admission.NewGate(cfg.Admission.GateConfig(), classifier, tracker)

	manager := channels.NewManager()
	dispatcher := dispatch.New(gate, tracker, placeholderHandler, manager, 0)

	if cfg.Channels.Telegram.Token != "" {
		tg, tgErr := telegram.New(cfg.Channels.Telegram, dispatcher)
		if tgErr != nil {
			slog.Error("failed to create telegram channel", "error", tgErr)
			os.Exit(1)
		}
		manager.Register(tg)
	}
	if cfg.Channels.Discord.Token != "" {
		dc, dcErr := discord.New(cfg.Channels.Discord, dispatcher)
		if dcErr != nil {
			slog.Error("failed to create discord channel", "error", dcErr)
			os.Exit(1)
		}
		manager.Register(dc)
	}

	// Classifier lists stay editable without a restart.
	if watchErr := config.Watch(ctx, cfgPath, func(fresh *config.Config) {
		classifier.Update(
			fresh.Admission.NavigationalPrefixes,
			fresh.Admission.NavigationalLiterals,
		)
	}); watchErr != nil {
		slog.Warn("config watch disabled", "error", watchErr)
	}

	if err := manager.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		coordinator.Release(context.Background())
		os.Exit(1)
	}

	// Periodic observability snapshot.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m := gate.MetricsSnapshot()
				slog.Debug("admission metrics",
					"tracked_keys", m.TrackedKeys,
					"active_chat_locks", m.ActiveChatLocks,
					"navigation_chats", m.NavigationChats,
					"navigation_steps", m.NavigationSteps,
				)
			}
		}
	}()

	slog.Info("advisorbot running", "owner", coordinator.OwnerID())

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case <-lost:
		slog.Error("instance lease lost, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	manager.StopAll(stopCtx)
	dispatcher.Wait(10 * time.Second)
	coordinator.Release(context.Background())
	if err := shutdownTracing(stopCtx); err != nil {
		slog.Warn("tracing shutdown failed", "error", err)
	}
	slog.Info("advisorbot stopped")
}

// openLeaseStore builds the configured lease backend.
func openLeaseStore(cfg config.InstanceConfig) (instance.Store, error) {
	switch cfg.Backend {
	case "", "file":
		path := config.ExpandHome(cfg.LeasePath)
		if path == "" {
			path = filepath.Join(os.TempDir(), "advisorbot-lease.json")
		}
		return instance.NewFileStore(path)
	case "sqlite":
		path := config.ExpandHome(cfg.LeasePath)
		if path == "" {
			return nil, fmt.Errorf("sqlite lease backend requires lease_path")
		}
		return instance.NewSQLiteStore(path)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres lease backend requires ADVISORBOT_POSTGRES_DSN")
		}
		return instance.NewPGStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown lease backend %q", cfg.Backend)
	}
}

// placeholderHandler stands in for the investment-advice business layer,
// which lives outside this repository. It echoes the admitted action so the
// gateway can be exercised end to end.
func placeholderHandler(_ context.Context, ev bus.InboundEvent, pattern string) (bus.OutboundMessage, error) {
	content := fmt.Sprintf("action %q received", ev.Payload)
	if pattern != "" && pattern != "none" {
		content += fmt.Sprintf(" (navigation: %s)", pattern)
	}
	return bus.OutboundMessage{Channel: ev.Channel, ChatID: ev.ChatID, Content: content}, nil
}
