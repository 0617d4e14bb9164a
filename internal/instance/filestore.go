package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockStaleAfter is how old a sidecar lockfile may be before it is treated as
// a leftover from a crashed process and broken.
const lockStaleAfter = 5 * time.Second

// FileStore persists the lease as a JSON file. Suitable for single-host
// deployments where candidate processes share a filesystem. Read-modify-write
// atomicity comes from a sidecar lockfile (O_EXCL) plus temp-file rename.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed lease store at path, creating parent
// directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lease dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Acquire(ctx context.Context, ownerID string, ttl time.Duration) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	now := time.Now().UTC()
	lease, err := s.read()
	if err != nil {
		return false, err
	}
	if lease != nil && lease.OwnerID != ownerID && !lease.IsExpired(now) {
		return false, nil
	}

	next := &Lease{OwnerID: ownerID, AcquiredAt: now, HeartbeatAt: now, ExpiresAt: now.Add(ttl)}
	if lease != nil && lease.OwnerID == ownerID {
		next.AcquiredAt = lease.AcquiredAt
	}
	return true, s.write(next)
}

func (s *FileStore) Renew(ctx context.Context, ownerID string, ttl time.Duration) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	lease, err := s.read()
	if err != nil {
		return false, err
	}
	if lease == nil || lease.OwnerID != ownerID {
		return false, nil
	}

	now := time.Now().UTC()
	lease.HeartbeatAt = now
	lease.ExpiresAt = now.Add(ttl)
	return true, s.write(lease)
}

func (s *FileStore) Release(ctx context.Context, ownerID string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	lease, err := s.read()
	if err != nil {
		return err
	}
	if lease == nil || lease.OwnerID != ownerID {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lease file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context) (*Lease, error) {
	return s.read()
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (*Lease, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lease file: %w", err)
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		// Corrupt lease file: treat as absent so a healthy process can
		// re-establish it rather than deadlocking every candidate.
		return nil, nil
	}
	return &lease, nil
}

// write persists the lease atomically: temp file, then rename.
func (s *FileStore) write(lease *Lease) error {
	data, err := json.MarshalIndent(lease, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "lease-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// lock takes the sidecar lockfile, breaking it when stale. Returns an unlock
// function.
func (s *FileStore) lock(ctx context.Context) (func(), error) {
	lockPath := s.path + ".lock"
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lockfile: %w", err)
		}

		// Held by someone else. Break it if its holder looks dead.
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			os.Remove(lockPath)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
