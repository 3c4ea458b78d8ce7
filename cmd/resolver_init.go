package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/cache"
	"github.com/sells-group/lscrefer/internal/config"
	"github.com/sells-group/lscrefer/internal/lsc"
	"github.com/sells-group/lscrefer/internal/monitoring"
	"github.com/sells-group/lscrefer/internal/poverty"
	"github.com/sells-group/lscrefer/internal/refdata"
	"github.com/sells-group/lscrefer/pkg/arcgis"
	"github.com/sells-group/lscrefer/pkg/geocode"
)

// geocodeCacheTTL is how long geocoder results are kept in the cache store.
const geocodeCacheTTL = 30 * 24 * time.Hour

// resolverEnv holds the initialized store, clients and service needed by
// the lookup, batch and serve commands.
type resolverEnv struct {
	Store    cache.Store
	Geocoder geocode.Client
	Service  *lsc.Service
	Poverty  *poverty.Table
	Metrics  *monitoring.Metrics
	Registry *prometheus.Registry
}

// Close releases resources held by the environment.
func (re *resolverEnv) Close() {
	if re.Store != nil {
		_ = re.Store.Close()
	}
}

// cacheOptions maps config onto cache.Open options.
func cacheOptions(c *config.Config) cache.Options {
	return cache.Options{
		Driver:        c.Cache.Driver,
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		SQLitePath:    c.SQLite.Path,
		PostgresURL:   c.Postgres.DatabaseURL,
		PostgresTable: c.Postgres.Table,
	}
}

// initResolver validates config for mode, opens the cache store, builds the
// clients and loads the program index. Callers should defer env.Close().
func initResolver(ctx context.Context, mode string) (*resolverEnv, error) {
	store, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}
	env, err := newResolverEnv(ctx, cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return env, nil
}

// openStore validates config for mode and opens the cache store.
func openStore(ctx context.Context, mode string) (cache.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	store, err := cache.Open(ctx, cacheOptions(cfg))
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}
	return store, nil
}

// newResolverEnv wires the service on top of an open store and loads the
// index.
func newResolverEnv(ctx context.Context, c *config.Config, store cache.Store) (*resolverEnv, error) {
	reg := prometheus.NewRegistry()
	metrics, err := monitoring.NewMetrics(reg)
	if err != nil {
		return nil, eris.Wrap(err, "register metrics")
	}

	directory, err := refdata.LoadPrograms(c.Data.ProgramsPath)
	if err != nil {
		return nil, err
	}
	table, err := refdata.LoadPoverty(c.Data.PovertyPath)
	if err != nil {
		return nil, err
	}

	geoOpts := []geocode.Option{
		geocode.WithRateLimit(c.Geocode.RateLimit),
		geocode.WithCache(store, geocodeCacheTTL),
		geocode.WithObserver(func(status int, elapsed time.Duration) {
			metrics.ObserveRemote(monitoring.ServiceGeocode, status, elapsed)
		}),
	}
	if c.Geocode.GoogleAPIKey != "" {
		geoOpts = append(geoOpts, geocode.WithGoogleAPIKey(c.Geocode.GoogleAPIKey))
		zap.L().Info("google geocoding fallback enabled")
	} else {
		zap.L().Debug("LSCREFER_GEOCODE_GOOGLE_API_KEY not set, census geocoder only")
	}
	geocoder := geocode.NewClient(geoOpts...)

	client := arcgis.NewClient(
		arcgis.WithTimeout(time.Duration(c.ArcGIS.TimeoutSecs)*time.Second),
		arcgis.WithRetry(arcgis.RetryPolicy{
			MaxAttempts:    c.ArcGIS.MaxAttempts,
			InitialBackoff: time.Duration(c.ArcGIS.RetryBackoffMs) * time.Millisecond,
			JitterFraction: 0.25,
		}),
	)
	ttl := time.Duration(c.Cache.TTLHours) * time.Hour
	source := lsc.NewServiceAreaSource(client, c.ArcGIS.BulkServiceAreaURL, store, c.Cache.Key, ttl, metrics)

	svc := lsc.NewService(lsc.ServiceConfig{
		ServiceAreaURL: c.ArcGIS.ServiceAreaURL,
		OfficeURL:      c.ArcGIS.OfficeURL,
		PointTimeout:   time.Duration(c.ArcGIS.PointTimeoutSecs) * time.Second,
	}, client, geocoder, source, directory, lsc.WithMetrics(metrics))

	if err := svc.Reload(ctx); err != nil {
		return nil, eris.Wrap(err, "load program index")
	}

	return &resolverEnv{
		Store:    store,
		Geocoder: geocoder,
		Service:  svc,
		Poverty:  table,
		Metrics:  metrics,
		Registry: reg,
	}, nil
}
