package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Default returns a Config with the documented default windows.
func Default() *Config {
	return &Config{
		Admission: AdmissionConfig{
			MaxTrackedKeys:     1000,
			MaxKeyAgeMS:        30_000,
			StatefulCooldownMS: 1_000,
			BreakerDurationMS:  2_000,
			NavigationalPrefixes: []string{
				"menu_", "back_",
			},
			NavigationalLiterals: []string{
				"back", "help", "status", "subscribe",
			},
		},
		Navigation: NavigationConfig{
			MaxHistory:        20,
			PurgeThresholdSec: 3600,
			DuplicateWindowMS: 500,
			MenuRootPrefix:    "menu_",
		},
		Instance: InstanceConfig{
			Backend:              "file",
			LeasePath:            "~/.advisorbot/lease.json",
			LeaseTTLSec:          15,
			HeartbeatIntervalSec: 5,
			StartupTimeoutSec:    30,
			RetryIntervalMS:      1_000,
			OpTimeoutMS:          2_000,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "advisorbot",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("ADVISORBOT_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("ADVISORBOT_DISCORD_TOKEN", &c.Channels.Discord.Token)
	envStr("ADVISORBOT_POSTGRES_DSN", &c.Instance.PostgresDSN)
	envStr("ADVISORBOT_LEASE_BACKEND", &c.Instance.Backend)
	envStr("ADVISORBOT_LEASE_PATH", &c.Instance.LeasePath)
	envStr("ADVISORBOT_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	if c.Telemetry.Endpoint != "" {
		c.Telemetry.Enabled = true
	}
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
