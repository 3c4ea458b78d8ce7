package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	ArcGIS     ArcGISConfig     `yaml:"arcgis" mapstructure:"arcgis"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	SQLite     SQLiteConfig     `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres   PostgresConfig   `yaml:"postgres" mapstructure:"postgres"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ArcGISConfig holds the FeatureServer layer endpoints.
type ArcGISConfig struct {
	ServiceAreaURL     string `yaml:"service_area_url" mapstructure:"service_area_url"`
	BulkServiceAreaURL string `yaml:"bulk_service_area_url" mapstructure:"bulk_service_area_url"`
	OfficeURL          string `yaml:"office_url" mapstructure:"office_url"`
	PointTimeoutSecs   int    `yaml:"point_timeout_secs" mapstructure:"point_timeout_secs"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts        int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// CacheConfig selects the key-value backend for the service-area payload.
type CacheConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Key      string `yaml:"key" mapstructure:"key"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// SQLiteConfig holds the SQLite cache file location.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig holds Postgres cache settings.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// DataConfig overrides the bundled reference files. Empty paths use the
// embedded copies.
type DataConfig struct {
	ProgramsPath string `yaml:"programs_path" mapstructure:"programs_path"`
	PovertyPath  string `yaml:"poverty_path" mapstructure:"poverty_path"`
}

// GeocodeConfig configures the address geocoder.
type GeocodeConfig struct {
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// BatchConfig configures batch resolution.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures the background index health checker.
type MonitoringConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	MaxIndexAgeHours  int    `yaml:"max_index_age_hours" mapstructure:"max_index_age_hours"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const arcgisServices = "https://services3.arcgis.com/n7h3cEoHTyNCwjCf/ArcGIS/rest/services"

// Default layer endpoints.
const (
	DefaultServiceAreaURL     = arcgisServices + "/BasicField_ServiceAreas2019/FeatureServer/0/query"
	DefaultBulkServiceAreaURL = arcgisServices + "/BasicFieldServiceAreas_GrantCycle/FeatureServer/0/query"
	DefaultOfficeURL          = arcgisServices + "/LSC_offices_grantees_main_branch_(Public)/FeatureServer/0/query"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LSCREFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one so AutomaticEnv can see it on Unmarshal.
	v.SetDefault("arcgis.service_area_url", DefaultServiceAreaURL)
	v.SetDefault("arcgis.bulk_service_area_url", DefaultBulkServiceAreaURL)
	v.SetDefault("arcgis.office_url", DefaultOfficeURL)
	v.SetDefault("arcgis.point_timeout_secs", 10)
	v.SetDefault("arcgis.timeout_secs", 30)
	v.SetDefault("arcgis.max_attempts", 1)
	v.SetDefault("arcgis.retry_backoff_ms", 500)
	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.key", "lsc_service_areas")
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("sqlite.path", "lscrefer.db")
	v.SetDefault("postgres.database_url", "")
	v.SetDefault("postgres.table", "public.kv_cache")
	v.SetDefault("data.programs_path", "")
	v.SetDefault("data.poverty_path", "")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit", 50)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.max_index_age_hours", 192)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "resolve" (lookups and reload), "batch", "serve" and "poverty".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "poverty":
		// Reference data only.
	case "resolve":
		errs = append(errs, c.validateResolve()...)
	case "batch":
		errs = append(errs, c.validateResolve()...)
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
			errs = append(errs, "batch.concurrency must be between 1 and 50")
		}
	case "serve":
		errs = append(errs, c.validateResolve()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateResolve() []string {
	var errs []string
	for key, val := range map[string]string{
		"arcgis.service_area_url":      c.ArcGIS.ServiceAreaURL,
		"arcgis.bulk_service_area_url": c.ArcGIS.BulkServiceAreaURL,
		"arcgis.office_url":            c.ArcGIS.OfficeURL,
		"cache.key":                    c.Cache.Key,
	} {
		if val == "" {
			errs = append(errs, key+" is required")
		}
	}
	if c.ArcGIS.PointTimeoutSecs <= 0 {
		errs = append(errs, "arcgis.point_timeout_secs must be > 0")
	}
	if c.Cache.TTLHours <= 0 {
		errs = append(errs, "cache.ttl_hours must be > 0")
	}

	switch c.Cache.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for cache.driver=redis")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			errs = append(errs, "sqlite.path is required for cache.driver=sqlite")
		}
	case "postgres":
		if c.Postgres.DatabaseURL == "" {
			errs = append(errs, "postgres.database_url is required for cache.driver=postgres")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not one of redis, sqlite, postgres, memory", c.Cache.Driver))
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
