package cache

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Drivers accepted by Open.
const (
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a Store backend.
type Options struct {
	Driver string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SQLitePath string

	PostgresURL   string
	PostgresTable string
}

// Open returns the Store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	zap.L().Debug("cache: opening store", zap.String("driver", opts.Driver))
	switch opts.Driver {
	case DriverRedis:
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case DriverSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.PostgresURL, opts.PostgresTable)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", opts.Driver)
	}
}
