// Package instance elects exactly one active poller among concurrently
// running bot processes. Ownership is a short-lived lease in shared storage
// (file, SQLite, or Postgres) renewed by heartbeat; a crashed owner's lease
// self-expires without any external supervisor.
package instance

import (
	"context"
	"time"
)

// LeaseName is the single well-known lease guarding the event-source poller.
const LeaseName = "poller"

// Lease is the cross-process ownership token for "who may poll".
type Lease struct {
	OwnerID     string    `json:"owner_id"`
	AcquiredAt  time.Time `json:"acquired_at"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired reports whether the lease is dead and may be reclaimed.
func (l *Lease) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Store persists the lease with atomic read-modify-write semantics:
// a write succeeds only if the caller already owns the lease or the
// existing lease has expired.
type Store interface {
	// Acquire attempts to take the lease for ownerID with the given TTL.
	// Returns false when a different owner holds a live lease.
	Acquire(ctx context.Context, ownerID string, ttl time.Duration) (bool, error)

	// Renew extends the lease's expiry. Returns false on owner mismatch,
	// signaling the caller to stop polling immediately.
	Renew(ctx context.Context, ownerID string, ttl time.Duration) (bool, error)

	// Release voluntarily gives up the lease on clean shutdown. Releasing a
	// lease held by someone else is a no-op.
	Release(ctx context.Context, ownerID string) error

	// Get returns the current lease, or nil when none exists.
	Get(ctx context.Context) (*Lease, error)

	// Close releases any underlying storage handles.
	Close() error
}
