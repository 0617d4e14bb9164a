package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_MissingFileYieldsDefaults verifies that a missing config file is
// not an error and produces the documented defaults.
func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.Admission.StatefulCooldownMS != 1000 {
		t.Fatalf("default cooldown = %d, want 1000", cfg.Admission.StatefulCooldownMS)
	}
	if cfg.Admission.BreakerDurationMS != 2000 {
		t.Fatalf("default breaker = %d, want 2000", cfg.Admission.BreakerDurationMS)
	}
	if cfg.Navigation.MaxHistory != 20 {
		t.Fatalf("default max history = %d, want 20", cfg.Navigation.MaxHistory)
	}
	if cfg.Instance.Backend != "file" {
		t.Fatalf("default lease backend = %q, want file", cfg.Instance.Backend)
	}
}

// TestLoad_JSON5File verifies JSON5 parsing (comments, trailing commas) and
// that file values override defaults.
func TestLoad_JSON5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		// loop windows tuned down for the staging bot
		admission: {
			stateful_cooldown_ms: 250,
			breaker_duration_ms: 500,
			navigational_prefixes: ["nav_",],
		},
		instance: {
			backend: "sqlite",
			lease_path: "/tmp/advisorbot-lease.db",
		},
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Admission.StatefulCooldownMS != 250 {
		t.Fatalf("cooldown = %d, want 250", cfg.Admission.StatefulCooldownMS)
	}
	if got := cfg.Admission.GateConfig().BreakerDuration; got != 500*time.Millisecond {
		t.Fatalf("breaker duration = %s, want 500ms", got)
	}
	if len(cfg.Admission.NavigationalPrefixes) != 1 || cfg.Admission.NavigationalPrefixes[0] != "nav_" {
		t.Fatalf("prefixes = %v, want [nav_]", cfg.Admission.NavigationalPrefixes)
	}
	if cfg.Instance.Backend != "sqlite" {
		t.Fatalf("backend = %q, want sqlite", cfg.Instance.Backend)
	}
}

// TestLoad_MalformedFile verifies that a parse failure is surfaced rather
// than silently falling back to defaults.
func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{admission:"), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

// TestLoad_EnvOverrides verifies that env vars win over file values and that
// an OTLP endpoint implies telemetry enablement.
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ADVISORBOT_TELEGRAM_TOKEN", "tok-from-env")
	t.Setenv("ADVISORBOT_LEASE_BACKEND", "postgres")
	t.Setenv("ADVISORBOT_POSTGRES_DSN", "postgres://u:p@localhost/bot")
	t.Setenv("ADVISORBOT_OTLP_ENDPOINT", "otel-collector:4317")

	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{channels: {telegram: {token: "tok-from-file"}}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Channels.Telegram.Token != "tok-from-env" {
		t.Fatalf("token = %q, env must win over file", cfg.Channels.Telegram.Token)
	}
	if cfg.Instance.Backend != "postgres" || cfg.Instance.PostgresDSN == "" {
		t.Fatalf("instance backend not overridden: %+v", cfg.Instance)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "otel-collector:4317" {
		t.Fatalf("telemetry not enabled by endpoint env: %+v", cfg.Telemetry)
	}
}

// TestDurationConversions verifies the ms/sec JSON fields map to the right
// Go durations for each subsystem config.
func TestDurationConversions(t *testing.T) {
	cfg := Default()

	gate := cfg.Admission.GateConfig()
	if gate.StatefulCooldown != time.Second || gate.BreakerDuration != 2*time.Second {
		t.Fatalf("gate config conversion wrong: %+v", gate)
	}
	if gate.MaxKeyAge != 30*time.Second || gate.MaxTrackedKeys != 1000 {
		t.Fatalf("gate capacity conversion wrong: %+v", gate)
	}

	tr := cfg.Navigation.TrackerConfig()
	if tr.PurgeThreshold != time.Hour || tr.DuplicateWindow != 500*time.Millisecond {
		t.Fatalf("tracker config conversion wrong: %+v", tr)
	}

	co := cfg.Instance.CoordinatorConfig()
	if co.TTL != 15*time.Second || co.HeartbeatInterval != 5*time.Second {
		t.Fatalf("coordinator config conversion wrong: %+v", co)
	}
}

// TestExpandHome covers the ~ expansion cases.
func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()

	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"~", home},
		{"~/lease.json", home + "/lease.json"},
	}
	for _, tc := range cases {
		if got := ExpandHome(tc.in); got != tc.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
