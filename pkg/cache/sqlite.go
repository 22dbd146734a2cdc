package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS response_cache (
	fingerprint TEXT PRIMARY KEY,
	response TEXT NOT NULL,
	stored_at INTEGER NOT NULL
);
`

// SQLiteStore persists cache entries in a single local SQLite file. It is
// the default backend and mirrors the schema the gateway has always used:
// one row per fingerprint, stored_at as a unix timestamp.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// cache table exists. Schema creation is idempotent; calling this twice on
// the same file is safe.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Name identifies the backend in logs and metrics.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Get returns the entry for a fingerprint, expired or not. Expiry is
// evaluated by the manager at read time.
func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	var response string
	var storedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT response, stored_at FROM response_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&response, &storedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache select: %w", err)
	}

	return &Entry{Response: response, StoredAt: time.Unix(storedAt, 0)}, nil
}

// Put upserts the entry; the previous row for the fingerprint, stale or
// live, is overwritten.
func (s *SQLiteStore) Put(ctx context.Context, fingerprint string, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO response_cache (fingerprint, response, stored_at) VALUES (?, ?, ?)`,
		fingerprint, entry.Response, entry.StoredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache upsert: %w", err)
	}
	return nil
}

// Purge deletes rows stored before the cutoff. Reads never depend on it;
// it only reclaims space from entries that expiry already hides.
func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM response_cache WHERE stored_at < ?`, cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping reports whether the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
