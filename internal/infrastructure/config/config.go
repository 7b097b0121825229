// Package config loads process configuration from the environment, with an
// optional YAML tuning file for acquisition tiers and traffic bands.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/99minutos/courier-tracking/internal/core/acquisition"
	"github.com/99minutos/courier-tracking/internal/core/estimation"
	"github.com/99minutos/courier-tracking/internal/core/session"
	"github.com/99minutos/courier-tracking/internal/core/tracking"
	"github.com/99minutos/courier-tracking/internal/core/transmit"
	redisstore "github.com/99minutos/courier-tracking/internal/infrastructure/db/redis"
	"github.com/99minutos/courier-tracking/internal/infrastructure/trackingapi"
	"github.com/99minutos/courier-tracking/pkg/logger"
)

type Config struct {
	Env         string `env:"ENV,          default=development"`
	MetricsAddr string `env:"METRICS_ADDR, default=:9090"`
	TuningFile  string `env:"TUNING_FILE"`

	Log         LogConfig
	TrackingAPI TrackingAPIConfig
	Session     SessionConfig
	Estimation  EstimationConfig
	Ingest      IngestConfig
	Redis       RedisConfig

	tuning *Tuning
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL,       default=info"`
	Pretty     bool   `env:"LOG_PRETTY,      default=false"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB, default=50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS, default=3"`
}

type TrackingAPIConfig struct {
	BaseURL string        `env:"TRACKING_API_URL,     default=http://localhost:8080"`
	Token   string        `env:"TRACKING_API_TOKEN"`
	Timeout time.Duration `env:"TRACKING_API_TIMEOUT, default=10s"`
}

type SessionConfig struct {
	TransmitInterval      time.Duration `env:"TRANSMIT_INTERVAL,          default=15s"`
	TransmitRetries       int           `env:"TRANSMIT_RETRIES,           default=3"`
	TransmitRetryDelay    time.Duration `env:"TRANSMIT_RETRY_DELAY,       default=5s"`
	StatusPollInterval    time.Duration `env:"STATUS_POLL_INTERVAL,       default=15s"`
	StatusTimeout         time.Duration `env:"STATUS_TIMEOUT,             default=10s"`
	AcquisitionRetryDelay time.Duration `env:"ACQUISITION_RETRY_DELAY,    default=3s"`
	ActiveAccuracyMeters  float64       `env:"ACTIVE_ACCURACY_METERS,     default=50"`
	MaxAccuracyMeters     float64       `env:"FILTER_MAX_ACCURACY_METERS, default=100"`
	MinMovementMeters     float64       `env:"FILTER_MIN_MOVEMENT_METERS, default=5"`
	HistoryCapacity       int           `env:"HISTORY_CAPACITY,           default=50"`
}

type EstimationConfig struct {
	RouteFactor            float64 `env:"ROUTE_FACTOR,             default=1.3"`
	DefaultSpeedKmh        float64 `env:"DEFAULT_SPEED_KMH,        default=30"`
	MaxReportedSpeedKmh    float64 `env:"MAX_REPORTED_SPEED_KMH,   default=50"`
	NoiseSpeedKmh          float64 `env:"NOISE_SPEED_KMH,          default=100"`
	SpeedWindow            int     `env:"SPEED_WINDOW,             default=5"`
	ArrivalThresholdMeters float64 `env:"ARRIVAL_THRESHOLD_METERS, default=100"`
	// TimeZone selects the clock of the traffic bands, e.g. America/Mexico_City.
	TimeZone string `env:"TRAFFIC_TIMEZONE"`
}

type IngestConfig struct {
	Port       string        `env:"INGEST_PORT,        default=8080"`
	JWTSecret  string        `env:"JWT_SECRET"`
	Workers    int           `env:"INGEST_WORKERS,     default=8"`
	BufferSize int           `env:"INGEST_BUFFER_SIZE, default=64"`
	DedupTTL   time.Duration `env:"DEDUP_TTL,          default=24h"`
	// DeliveryTTL expires delivery records after their last write; 0 keeps them.
	DeliveryTTL time.Duration `env:"DELIVERY_TTL, default=72h"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	PoolSize int           `env:"REDIS_POOL_SIZE, default=10"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,   default=5s"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from l and, when TUNING_FILE is set, the
// tuning file it names.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.TuningFile != "" {
		t, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		cfg.tuning = t
	}
	return &cfg, nil
}

// Tuning returns the parsed tuning file, or nil when none is configured.
func (c *Config) Tuning() *Tuning {
	return c.tuning
}

// LoggerOptions maps the log settings for logger.Init.
func (c *Config) LoggerOptions(service string) logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		Pretty:     c.Log.Pretty,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		Service:    service,
	}
}

// RedisStore returns the connection settings of the ingest store.
func (c *Config) RedisStore() redisstore.Config {
	return redisstore.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		PoolSize: c.Redis.PoolSize,
		Timeout:  c.Redis.Timeout,
	}
}

// TrackingAPIClient returns the client settings.
func (c *Config) TrackingAPIClient() trackingapi.Config {
	return trackingapi.Config{
		BaseURL: c.TrackingAPI.BaseURL,
		Token:   c.TrackingAPI.Token,
		Timeout: c.TrackingAPI.Timeout,
	}
}

// SessionConfig assembles the pipeline configuration, applying tuned tiers
// when present.
func (c *Config) SessionConfig() session.Config {
	tiers := acquisition.DefaultTiers()
	if c.tuning != nil && len(c.tuning.Tiers) > 0 {
		tiers = c.tuning.Tiers
	}
	s := c.Session
	return session.Config{
		Acquisition: acquisition.Config{
			Tiers:                tiers,
			RetryDelay:           s.AcquisitionRetryDelay,
			ActiveAccuracyMeters: s.ActiveAccuracyMeters,
		},
		Filter: tracking.FilterConfig{
			MaxAccuracyMeters: s.MaxAccuracyMeters,
			MinMovementMeters: s.MinMovementMeters,
		},
		HistoryCapacity: s.HistoryCapacity,
		Transmit: transmit.Config{
			MaxRetries: s.TransmitRetries,
			RetryDelay: s.TransmitRetryDelay,
			Message:    transmit.DefaultMessage,
		},
		TransmitInterval:   s.TransmitInterval,
		StatusPollInterval: s.StatusPollInterval,
		StatusTimeout:      s.StatusTimeout,
	}
}

// EstimationParams returns the estimation constants, applying the tuned
// traffic table when present.
func (c *Config) EstimationParams() (estimation.Params, error) {
	p := estimation.DefaultParams()
	e := c.Estimation
	p.RouteFactor = e.RouteFactor
	p.DefaultSpeedKmh = e.DefaultSpeedKmh
	p.MaxReportedSpeedKmh = e.MaxReportedSpeedKmh
	p.NoiseSpeedKmh = e.NoiseSpeedKmh
	p.SpeedWindow = e.SpeedWindow
	p.ArrivalThresholdMeters = e.ArrivalThresholdMeters
	if c.tuning != nil && c.tuning.Traffic != nil {
		p.Traffic = *c.tuning.Traffic
	}
	if e.TimeZone != "" {
		loc, err := time.LoadLocation(e.TimeZone)
		if err != nil {
			return estimation.Params{}, fmt.Errorf("config: TRAFFIC_TIMEZONE: %w", err)
		}
		p.Location = loc
	}
	return p, nil
}
