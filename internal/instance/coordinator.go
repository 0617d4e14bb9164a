package instance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Config holds the coordinator's timing knobs. TTL should be a small multiple
// of the heartbeat interval so a crashed owner's lease expires quickly.
type Config struct {
	TTL               time.Duration // lease lifetime (default 15s)
	HeartbeatInterval time.Duration // renewal cadence (default TTL/3)
	StartupTimeout    time.Duration // max wait to become owner at boot (default 30s)
	RetryInterval     time.Duration // pause between acquire attempts (default 1s)
	OpTimeout         time.Duration // per store call; a timeout counts as "not renewed" (default 2s)
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 15 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = c.TTL / 3
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 30 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 2 * time.Second
	}
	return c
}

// Coordinator wraps a lease Store with heartbeat renewal and a lost-ownership
// signal. One coordinator instance per process.
type Coordinator struct {
	store   Store
	cfg     Config
	ownerID string
	lost    chan struct{}
}

// NewCoordinator creates a coordinator with a process-unique owner id.
func NewCoordinator(store Store, cfg Config) *Coordinator {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return &Coordinator{
		store:   store,
		cfg:     cfg.withDefaults(),
		ownerID: fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8]),
		lost:    make(chan struct{}),
	}
}

// OwnerID returns this process's lease owner id.
func (c *Coordinator) OwnerID() string { return c.ownerID }

// TryAcquire makes one attempt to become the sole poller. Storage errors and
// timeouts count as failure: the coordinator fails toward relinquishing
// exclusivity, never toward assuming it.
func (c *Coordinator) TryAcquire(ctx context.Context) bool {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	ok, err := c.store.Acquire(opCtx, c.ownerID, c.cfg.TTL)
	if err != nil {
		slog.Warn("lease acquire failed", "owner", c.ownerID, "error", err)
		return false
	}
	return ok
}

// WaitAcquire retries TryAcquire until it succeeds or the startup timeout
// elapses. A timeout is fatal to the caller: running the business layer
// without exclusivity would produce duplicate answers.
func (c *Coordinator) WaitAcquire(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.StartupTimeout)
	for {
		if c.TryAcquire(ctx) {
			slog.Info("instance lease acquired", "owner", c.ownerID, "ttl", c.cfg.TTL)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("could not acquire instance lease within %s: another process is polling", c.cfg.StartupTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryInterval):
		}
	}
}

// StartHeartbeat renews the lease on its own ticker, independent of the
// polling loop's cadence. The returned channel is closed when ownership is
// lost (owner mismatch, storage error, or timeout); the caller must stop
// polling within one heartbeat interval of that signal.
func (c *Coordinator) StartHeartbeat(ctx context.Context) <-chan struct{} {
	go func() {
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.renewOnce(ctx) {
					close(c.lost)
					return
				}
			}
		}
	}()
	return c.lost
}

func (c *Coordinator) renewOnce(ctx context.Context) bool {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	ok, err := c.store.Renew(opCtx, c.ownerID, c.cfg.TTL)
	if err != nil {
		slog.Error("lease renewal failed, relinquishing", "owner", c.ownerID, "error", err)
		return false
	}
	if !ok {
		slog.Error("lease taken by another owner, stopping", "owner", c.ownerID)
		return false
	}
	slog.Debug("lease renewed", "owner", c.ownerID)
	return true
}

// Release gives the lease up voluntarily on clean shutdown.
func (c *Coordinator) Release(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	if err := c.store.Release(opCtx, c.ownerID); err != nil {
		slog.Warn("lease release failed", "owner", c.ownerID, "error", err)
		return
	}
	slog.Info("instance lease released", "owner", c.ownerID)
}
