package instance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the lease in a shared SQLite database. WAL mode plus a
// generous busy timeout lets candidate processes on the same host contend
// safely; the read-modify-write runs inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the lease database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open lease db: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS instance_lease (
		name         TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		acquired_at  TEXT NOT NULL,
		heartbeat_at TEXT NOT NULL,
		expires_at   TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate lease db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Acquire(ctx context.Context, ownerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanLease(tx.QueryRowContext(ctx,
		`SELECT owner_id, acquired_at, heartbeat_at, expires_at FROM instance_lease WHERE name = ?`, LeaseName))
	if err != nil {
		return false, err
	}
	if current != nil && current.OwnerID != ownerID && !current.IsExpired(now) {
		return false, nil
	}

	acquiredAt := now
	if current != nil && current.OwnerID == ownerID {
		acquiredAt = current.AcquiredAt
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO instance_lease (name, owner_id, acquired_at, heartbeat_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   acquired_at = excluded.acquired_at,
		   heartbeat_at = excluded.heartbeat_at,
		   expires_at = excluded.expires_at`,
		LeaseName, ownerID,
		acquiredAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		now.Add(ttl).Format(time.RFC3339Nano))
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *SQLiteStore) Renew(ctx context.Context, ownerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE instance_lease SET heartbeat_at = ?, expires_at = ? WHERE name = ? AND owner_id = ?`,
		now.Format(time.RFC3339Nano), now.Add(ttl).Format(time.RFC3339Nano), LeaseName, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Release(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM instance_lease WHERE name = ? AND owner_id = ?`, LeaseName, ownerID)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context) (*Lease, error) {
	return scanLease(s.db.QueryRowContext(ctx,
		`SELECT owner_id, acquired_at, heartbeat_at, expires_at FROM instance_lease WHERE name = ?`, LeaseName))
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanLease(row *sql.Row) (*Lease, error) {
	var lease Lease
	var acquired, heartbeat, expires string
	err := row.Scan(&lease.OwnerID, &acquired, &heartbeat, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst *time.Time
	}{{acquired, &lease.AcquiredAt}, {heartbeat, &lease.HeartbeatAt}, {expires, &lease.ExpiresAt}} {
		t, parseErr := time.Parse(time.RFC3339Nano, f.raw)
		if parseErr != nil {
			return nil, fmt.Errorf("parse lease timestamp %q: %w", f.raw, parseErr)
		}
		*f.dst = t
	}
	return &lease, nil
}
