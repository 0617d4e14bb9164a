package instance

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "lease.db"))
	if err != nil {
		t.Fatalf("create sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSQLiteStore_AcquireRenewRelease walks the full lease lifecycle against
// a real database file.
func TestSQLiteStore_AcquireRenewRelease(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	if ok, err := s.Acquire(ctx, "owner-b", time.Minute); err != nil || ok {
		t.Fatalf("competing acquire must be denied: ok=%v err=%v", ok, err)
	}

	if ok, err := s.Renew(ctx, "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("owner renew: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Renew(ctx, "owner-b", time.Minute); err != nil || ok {
		t.Fatalf("non-owner renew must be denied: ok=%v err=%v", ok, err)
	}

	lease, err := s.Get(ctx)
	if err != nil || lease == nil || lease.OwnerID != "owner-a" {
		t.Fatalf("get: lease=%v err=%v", lease, err)
	}

	if err := s.Release(ctx, "owner-b"); err != nil {
		t.Fatalf("foreign release should be a no-op: %v", err)
	}
	if lease, _ := s.Get(ctx); lease == nil {
		t.Fatal("foreign release must not delete the lease")
	}

	if err := s.Release(ctx, "owner-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if lease, _ := s.Get(ctx); lease != nil {
		t.Fatal("lease should be gone after release")
	}
}

// TestSQLiteStore_ExpiredLeaseReclaimed verifies TTL-based takeover.
func TestSQLiteStore_ExpiredLeaseReclaimed(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	if ok, _ := s.Acquire(ctx, "crashed", 50*time.Millisecond); !ok {
		t.Fatal("setup acquire failed")
	}
	time.Sleep(80 * time.Millisecond)

	ok, err := s.Acquire(ctx, "successor", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expired lease should be reclaimable: ok=%v err=%v", ok, err)
	}
	lease, _ := s.Get(ctx)
	if lease.OwnerID != "successor" {
		t.Fatalf("expected successor, got %q", lease.OwnerID)
	}
	// Takeover resets AcquiredAt to the new owner's acquisition.
	if lease.AcquiredAt.Before(time.Now().Add(-time.Second)) {
		t.Fatalf("acquired_at not refreshed on takeover: %v", lease.AcquiredAt)
	}
}

// TestSQLiteStore_SelfReacquirePreservesAcquiredAt mirrors the file-store
// contract: an owner refreshing its own lease keeps the original epoch.
func TestSQLiteStore_SelfReacquirePreservesAcquiredAt(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	s.Acquire(ctx, "owner-a", time.Minute)
	first, _ := s.Get(ctx)

	time.Sleep(20 * time.Millisecond)
	if ok, err := s.Acquire(ctx, "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("self re-acquire: ok=%v err=%v", ok, err)
	}
	second, _ := s.Get(ctx)
	if !second.AcquiredAt.Equal(first.AcquiredAt) {
		t.Fatalf("acquired_at changed on self re-acquire: %v vs %v", first.AcquiredAt, second.AcquiredAt)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Fatal("expires_at should have moved forward")
	}
}
