package instance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore persists the lease in Postgres for multi-host deployments. The
// acquire path is a single upsert whose WHERE clause carries the
// compare-and-set: it only fires when the caller already owns the row or the
// existing lease has expired. Schema is managed by `advisorbot migrate`.
type PGStore struct {
	db *sql.DB
}

// NewPGStore connects to Postgres using the given DSN.
func NewPGStore(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PGStore{db: db}, nil
}

func (s *PGStore) Acquire(ctx context.Context, ownerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO instance_leases (name, owner_id, acquired_at, heartbeat_at, expires_at)
		 VALUES ($1, $2, $3, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
		   owner_id = EXCLUDED.owner_id,
		   acquired_at = CASE WHEN instance_leases.owner_id = EXCLUDED.owner_id
		                      THEN instance_leases.acquired_at ELSE EXCLUDED.acquired_at END,
		   heartbeat_at = EXCLUDED.heartbeat_at,
		   expires_at = EXCLUDED.expires_at
		 WHERE instance_leases.owner_id = EXCLUDED.owner_id
		    OR instance_leases.expires_at < $3`,
		LeaseName, ownerID, now, now.Add(ttl))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PGStore) Renew(ctx context.Context, ownerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE instance_leases SET heartbeat_at = $1, expires_at = $2
		 WHERE name = $3 AND owner_id = $4`,
		now, now.Add(ttl), LeaseName, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PGStore) Release(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM instance_leases WHERE name = $1 AND owner_id = $2`, LeaseName, ownerID)
	return err
}

func (s *PGStore) Get(ctx context.Context) (*Lease, error) {
	var lease Lease
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, acquired_at, heartbeat_at, expires_at FROM instance_leases WHERE name = $1`,
		LeaseName).Scan(&lease.OwnerID, &lease.AcquiredAt, &lease.HeartbeatAt, &lease.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *PGStore) Close() error { return s.db.Close() }
