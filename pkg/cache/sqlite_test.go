package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	storedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, "fp1", Entry{Response: "hello there", StoredAt: storedAt}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := store.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Response != "hello there" {
		t.Errorf("Response = %q, want %q", entry.Response, "hello there")
	}
	if entry.StoredAt.Unix() != storedAt.Unix() {
		t.Errorf("StoredAt = %v, want %v (second granularity)", entry.StoredAt, storedAt)
	}
}

func TestSQLiteStore_MissForUnknownKey(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Get(context.Background(), "unknown")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get = %v, want ErrCacheMiss", err)
	}
}

func TestSQLiteStore_UpsertOverwrites(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now()
	if err := store.Put(ctx, "fp", Entry{Response: "first", StoredAt: now}); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := store.Put(ctx, "fp", Entry{Response: "second", StoredAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	entry, err := store.Get(ctx, "fp")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Response != "second" {
		t.Errorf("Response = %q, want %q (last writer wins)", entry.Response, "second")
	}
}

func TestSQLiteStore_InitIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := first.Put(context.Background(), "fp", Entry{Response: "kept", StoredAt: time.Now()}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	first.Close()

	// Re-opening the same file must not fail or lose data.
	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer second.Close()

	entry, err := second.Get(context.Background(), "fp")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if entry.Response != "kept" {
		t.Errorf("Response = %q, want %q", entry.Response, "kept")
	}
}

func TestSQLiteStore_OpenFailureDegradesGateway(t *testing.T) {
	// A directory path cannot back a database file.
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "nested", "cache.db"))
	if err == nil {
		t.Skip("driver created nested path; nothing to assert")
	}

	// The manager still works cache-less over a nil store.
	c := New(nil, time.Hour)
	if _, ok := c.Lookup(context.Background(), "prompt"); ok {
		t.Error("expected miss from degraded cache")
	}
}

func TestSQLiteStore_Purge(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now()
	store.Put(ctx, "stale", Entry{Response: "old", StoredAt: now.Add(-2 * time.Hour)})
	store.Put(ctx, "live", Entry{Response: "new", StoredAt: now})

	purged, err := store.Purge(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d rows, want 1", purged)
	}

	if _, err := store.Get(ctx, "stale"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("stale row survived purge: %v", err)
	}
	if _, err := store.Get(ctx, "live"); err != nil {
		t.Errorf("live row removed by purge: %v", err)
	}
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := newTestSQLiteStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping = %v, want nil", err)
	}
}

func TestCache_OverSQLite(t *testing.T) {
	store := newTestSQLiteStore(t)
	c := New(store, time.Hour)
	ctx := context.Background()

	c.Store(ctx, "the full outbound prompt", "the generated reply")

	got, ok := c.Lookup(ctx, "the full outbound prompt")
	if !ok {
		t.Fatal("expected hit through the sqlite backend")
	}
	if got != "the generated reply" {
		t.Errorf("Lookup = %q, want %q", got, "the generated reply")
	}
}
