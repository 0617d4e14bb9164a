package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestWatch_ReloadOnWrite verifies that rewriting the config file triggers a
// debounced reload with the new values.
func TestWatch_ReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{admission: {stateful_cooldown_ms: 100}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	if err := Watch(ctx, path, func(cfg *Config) { reloaded <- cfg }); err != nil {
		t.Fatalf("start watch: %v", err)
	}

	// Give the watcher a moment to establish, then rewrite.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{admission: {stateful_cooldown_ms: 700}}`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Admission.StatefulCooldownMS != 700 {
			t.Fatalf("reloaded cooldown = %d, want 700", cfg.Admission.StatefulCooldownMS)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

// TestWatch_ParseFailureKeepsPrevious verifies that a broken rewrite never
// reaches the callback.
func TestWatch_ParseFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{}`), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	if err := Watch(ctx, path, func(cfg *Config) { reloaded <- cfg }); err != nil {
		t.Fatalf("start watch: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	os.WriteFile(path, []byte(`{admission:`), 0o644)

	select {
	case <-reloaded:
		t.Fatal("broken config must not be delivered")
	case <-time.After(600 * time.Millisecond):
	}
}

// TestWatch_IgnoresSiblingFiles verifies unrelated files in the watched
// directory do not trigger reloads.
func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{}`), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	if err := Watch(ctx, path, func(cfg *Config) { reloaded <- cfg }); err != nil {
		t.Fatalf("start watch: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("unrelated"), 0o644)

	select {
	case <-reloaded:
		t.Fatal("sibling file write must not trigger a reload")
	case <-time.After(600 * time.Millisecond):
	}
}
