package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// DefaultPostgresTable is the cache table used when none is configured.
const DefaultPostgresTable = "public.kv_cache"

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore is a Store backed by a Postgres table. Expiry is evaluated
// against the database clock.
type PostgresStore struct {
	pool  Pool
	table string
}

// NewPostgresStore wraps an existing pool. An empty table uses DefaultPostgresTable.
func NewPostgresStore(pool Pool, table string) *PostgresStore {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &PostgresStore{pool: pool, table: table}
}

// OpenPostgres connects to databaseURL and ensures the cache table exists.
func OpenPostgres(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres connect")
	}
	s := NewPostgresStore(pool, table)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the cache table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			expires_at TIMESTAMPTZ
		)`, s.table))
	if err != nil {
		return eris.Wrap(err, "cache: postgres migrate")
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())", s.table),
		key,
	).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: postgres get %s", key)
	}
	return val, true, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, key string, val []byte) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at) VALUES ($1, $2, NULL)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL`, s.table),
		key, val,
	)
	if err != nil {
		return eris.Wrapf(err, "cache: postgres set %s", key)
	}
	return nil
}

// Expire implements Store.
func (s *PostgresStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET expires_at = now() + make_interval(secs => $2) WHERE key = $1", s.table),
		key, ttl.Seconds(),
	)
	if err != nil {
		return eris.Wrapf(err, "cache: postgres expire %s", key)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = $1", s.table), key); err != nil {
		return eris.Wrapf(err, "cache: postgres delete %s", key)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
