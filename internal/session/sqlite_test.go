package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := NewSQLiteStore(context.Background(), path, 3, time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteTestStore(t)

	rec := NewRecord("conv-1", time.Now())
	rec.Append(
		UserMessage("create a page"),
		Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "confluence_create_page"}}},
	)
	rec.Pending = &PendingApproval{Request: rec.Messages[1].ToolCalls[0], AskedAt: time.Now()}

	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(got.Messages))
	}
	if got.State() != StateAwaitingApproval {
		t.Fatalf("State = %q, want awaiting_approval", got.State())
	}
	if got.Pending.Request.ID != "call_1" {
		t.Fatalf("pending = %+v", got.Pending)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	t.Parallel()

	s := newSQLiteTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestSQLiteExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteTestStore(t)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	if err := s.Put(ctx, NewRecord("conv-1", now)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	now = now.Add(time.Hour + time.Second)
	if _, err := s.Get(ctx, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get expired = %v, want ErrNotFound", err)
	}

	// Expired row is gone, so a purge right after finds nothing.
	purged, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 0 {
		t.Fatalf("purged %d, want 0", purged)
	}
}

func TestSQLiteCapacityEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteTestStore(t) // capacity 3

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("conv-%d", i)
		if err := s.Put(ctx, NewRecord(id, now)); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	if _, err := s.Get(ctx, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest record should be evicted, got %v", err)
	}
	for _, id := range []string{"conv-2", "conv-3", "conv-4"} {
		if _, err := s.Get(ctx, id); err != nil {
			t.Fatalf("%s should survive eviction: %v", id, err)
		}
	}
}

func TestSQLitePurgeExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteTestStore(t)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	if err := s.Put(ctx, NewRecord("old", now)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	now = now.Add(30 * time.Minute)
	if err := s.Put(ctx, NewRecord("fresh", now)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now = now.Add(45 * time.Minute)
	purged, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged %d, want 1", purged)
	}
	if _, err := s.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh record should survive purge: %v", err)
	}
}
