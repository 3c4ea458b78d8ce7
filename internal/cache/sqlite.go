package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS kv_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);
`

// SQLiteStore is a Store backed by a single SQLite table. Expiry is stored
// as unix nanoseconds and checked on read.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at dsn and ensures the cache
// table exists.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "cache: sqlite migrate")
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_cache WHERE key = ?`, key,
	).Scan(&val, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: sqlite get %s", key)
	}
	if expiresAt.Valid && s.now().UnixNano() >= expiresAt.Int64 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_cache WHERE key = ?`, key); err != nil {
			return nil, false, eris.Wrapf(err, "cache: sqlite evict %s", key)
		}
		return nil, false, nil
	}
	return val, true, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, val []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_cache (key, value, expires_at) VALUES (?, ?, NULL)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = NULL`,
		key, val,
	)
	if err != nil {
		return eris.Wrapf(err, "cache: sqlite set %s", key)
	}
	return nil
}

// Expire implements Store.
func (s *SQLiteStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE kv_cache SET expires_at = ? WHERE key = ?`,
		s.now().Add(ttl).UnixNano(), key,
	)
	if err != nil {
		return eris.Wrapf(err, "cache: sqlite expire %s", key)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_cache WHERE key = ?`, key); err != nil {
		return eris.Wrapf(err, "cache: sqlite delete %s", key)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
