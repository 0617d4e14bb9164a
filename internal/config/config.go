// Package config defines the bot's configuration surface: channel tokens,
// admission/navigation timing knobs, and the instance-lease backend. All
// windows that the source history disagreed on (cooldowns, breaker duration)
// live here as explicit numbers rather than scattered constants.
package config

import (
	"time"

	"github.com/novafond/advisorbot/internal/admission"
	"github.com/novafond/advisorbot/internal/instance"
	"github.com/novafond/advisorbot/internal/navigation"
)

// Config is the root configuration for the advisorbot gateway.
type Config struct {
	Channels   ChannelsConfig   `json:"channels"`
	Admission  AdmissionConfig  `json:"admission"`
	Navigation NavigationConfig `json:"navigation"`
	Instance   InstanceConfig   `json:"instance"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
}

// ChannelsConfig enables the chat platform connectors.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

// TelegramConfig configures the Telegram long-polling channel.
type TelegramConfig struct {
	Token     string   `json:"token,omitempty"` // or env ADVISORBOT_TELEGRAM_TOKEN
	AllowFrom []string `json:"allow_from,omitempty"`
	Proxy     string   `json:"proxy,omitempty"`
}

// DiscordConfig configures the Discord gateway channel.
type DiscordConfig struct {
	Token     string   `json:"token,omitempty"` // or env ADVISORBOT_DISCORD_TOKEN
	AllowFrom []string `json:"allow_from,omitempty"`
}

// AdmissionConfig holds dedup and circuit-breaker knobs. Durations are
// integer milliseconds in JSON.
type AdmissionConfig struct {
	MaxTrackedKeys       int      `json:"max_tracked_keys"`
	MaxKeyAgeMS          int      `json:"max_key_age_ms"`
	StatefulCooldownMS   int      `json:"stateful_cooldown_ms"`
	BreakerDurationMS    int      `json:"breaker_duration_ms"`
	NavigationalPrefixes []string `json:"navigational_prefixes"`
	NavigationalLiterals []string `json:"navigational_literals"`
}

// GateConfig converts to the admission package's config struct.
func (c AdmissionConfig) GateConfig() admission.Config {
	return admission.Config{
		MaxTrackedKeys:   c.MaxTrackedKeys,
		MaxKeyAge:        time.Duration(c.MaxKeyAgeMS) * time.Millisecond,
		StatefulCooldown: time.Duration(c.StatefulCooldownMS) * time.Millisecond,
		BreakerDuration:  time.Duration(c.BreakerDurationMS) * time.Millisecond,
	}
}

// NavigationConfig holds history retention and pattern-detection knobs.
type NavigationConfig struct {
	MaxHistory        int    `json:"max_history"`
	PurgeThresholdSec int    `json:"purge_threshold_sec"`
	DuplicateWindowMS int    `json:"duplicate_window_ms"`
	MenuRootPrefix    string `json:"menu_root_prefix"`
}

// TrackerConfig converts to the navigation package's config struct.
func (c NavigationConfig) TrackerConfig() navigation.Config {
	return navigation.Config{
		MaxHistory:      c.MaxHistory,
		PurgeThreshold:  time.Duration(c.PurgeThresholdSec) * time.Second,
		DuplicateWindow: time.Duration(c.DuplicateWindowMS) * time.Millisecond,
	}
}

// InstanceConfig selects and tunes the cross-process lease backend.
type InstanceConfig struct {
	Backend              string `json:"backend,omitempty"`    // "file" (default), "sqlite", or "postgres"
	LeasePath            string `json:"lease_path,omitempty"` // file/sqlite path (default ~/.advisorbot/lease.json or .db)
	PostgresDSN          string `json:"-"`                    // env ADVISORBOT_POSTGRES_DSN only (secret)
	LeaseTTLSec          int    `json:"lease_ttl_sec"`
	HeartbeatIntervalSec int    `json:"heartbeat_interval_sec"`
	StartupTimeoutSec    int    `json:"startup_timeout_sec"`
	RetryIntervalMS      int    `json:"retry_interval_ms"`
	OpTimeoutMS          int    `json:"op_timeout_ms"`
}

// CoordinatorConfig converts to the instance package's config struct.
func (c InstanceConfig) CoordinatorConfig() instance.Config {
	return instance.Config{
		TTL:               time.Duration(c.LeaseTTLSec) * time.Second,
		HeartbeatInterval: time.Duration(c.HeartbeatIntervalSec) * time.Second,
		StartupTimeout:    time.Duration(c.StartupTimeoutSec) * time.Second,
		RetryInterval:     time.Duration(c.RetryIntervalMS) * time.Millisecond,
		OpTimeout:         time.Duration(c.OpTimeoutMS) * time.Millisecond,
	}
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"` // host:port for OTLP gRPC
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}
