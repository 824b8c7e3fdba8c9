package pricecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrMiss is returned by a BlobStore when the key is absent.
var ErrMiss = errors.New("cache miss")

// SQLiteStore keeps encoded panels in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_cache (
			key       TEXT PRIMARY KEY,
			payload   BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the payload and its store time, or ErrMiss.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	var payload []byte
	var storedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM price_cache WHERE key = ?`, key,
	).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read cache entry: %w", err)
	}
	return payload, time.UnixMilli(storedAt).UTC(), nil
}

// Put inserts or replaces the payload for key.
func (s *SQLiteStore) Put(ctx context.Context, key string, payload []byte, storedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_cache (key, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		key, payload, storedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Prune deletes entries stored before cutoff and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE stored_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

var _ BlobStore = (*SQLiteStore)(nil)
