// Package config loads and validates page generator configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	localstorage "github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/local"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageS3     = "s3"
	StorageMinIO  = "minio"
)

// Queue backends.
const (
	QueueMemory = "memory"
	QueueAsynq  = "asynq"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	MaxUploadMB           int `mapstructure:"max_upload_mb"`
	// RateLimitRPS throttles page and bulk submissions per owner; 0 disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AuthConfig holds the HMAC secret used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig controls access to the Postgres catalog. An empty DSN selects
// the in-memory catalog.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Backend       string              `mapstructure:"backend"`
	Bucket        string              `mapstructure:"bucket"`
	PublicBaseURL string              `mapstructure:"public_base_url"`
	ContentType   string              `mapstructure:"content_type"`
	Local         localstorage.Config `mapstructure:"local"`
	S3            S3Config            `mapstructure:"s3"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// S3Config holds S3-compatible endpoint settings.
type S3Config struct {
	Endpoint   string `mapstructure:"endpoint"`
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	PublicRead bool   `mapstructure:"public_read"`
}

// MinIOConfig holds MinIO endpoint settings.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// QueueConfig selects the work queue and its delivery policy.
type QueueConfig struct {
	Backend           string `mapstructure:"backend"`
	Depth             int    `mapstructure:"depth"`
	RedisAddr         string `mapstructure:"redis_addr"`
	Name              string `mapstructure:"name"`
	MaxRetry          int    `mapstructure:"max_retry"`
	JobTimeoutSeconds int    `mapstructure:"job_timeout_seconds"`
	RetryDelayMs      int    `mapstructure:"retry_delay_ms"`
}

// WorkersConfig sizes the bulk worker pool.
type WorkersConfig struct {
	Count         int `mapstructure:"count"`
	ProgressEvery int `mapstructure:"progress_every"`
}

// ProgressConfig configures the progress hub and its sinks.
type ProgressConfig struct {
	Enabled           bool                `mapstructure:"enabled"`
	BufferSize        int                 `mapstructure:"buffer_size"`
	Batch             ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs     int                 `mapstructure:"sink_timeout_ms"`
	LogEnabled        bool                `mapstructure:"log_enabled"`
	PrometheusEnabled bool                `mapstructure:"prometheus_enabled"`
	Redis             ProgressRedisConfig `mapstructure:"redis"`
}

// ProgressBatchConfig bounds hub batches.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// ProgressRedisConfig configures the Redis progress sink.
type ProgressRedisConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Addr               string `mapstructure:"addr"`
	Prefix             string `mapstructure:"prefix"`
	SnapshotTTLSeconds int    `mapstructure:"snapshot_ttl_seconds"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TelemetryConfig controls the tracer provider.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from an optional .env file, an optional config file and
// PAGEGEN_* environment variables.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("PAGEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv exports variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("logging.development", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("storage.local.base_dir", "data/pages")
	v.SetDefault("storage.local.public_base_url", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.public_read", true)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.use_ssl", true)
	v.SetDefault("queue.backend", QueueMemory)
	v.SetDefault("queue.depth", 64)
	v.SetDefault("queue.redis_addr", "")
	v.SetDefault("queue.name", "bulk")
	v.SetDefault("queue.max_retry", 3)
	v.SetDefault("queue.job_timeout_seconds", 600)
	v.SetDefault("queue.retry_delay_ms", 1000)
	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.progress_every", 10)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch.max_events", 50)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 2000)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.prometheus_enabled", true)
	v.SetDefault("progress.redis.enabled", false)
	v.SetDefault("progress.redis.addr", "")
	v.SetDefault("progress.redis.prefix", "pagegen:progress")
	v.SetDefault("progress.redis.snapshot_ttl_seconds", 86400)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "pagegen")
	v.SetDefault("telemetry.service_version", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	switch c.Queue.Backend {
	case QueueMemory:
		if c.Queue.Depth <= 0 {
			return fmt.Errorf("queue.depth must be > 0 for the memory queue")
		}
	case QueueAsynq:
		if c.Queue.RedisAddr == "" {
			return fmt.Errorf("queue.redis_addr must be set for the asynq queue")
		}
	default:
		return fmt.Errorf("queue.backend %q is not supported", c.Queue.Backend)
	}
	if c.Queue.MaxRetry < 0 {
		return fmt.Errorf("queue.max_retry must be >= 0")
	}
	if c.Queue.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("queue.job_timeout_seconds must be > 0")
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be > 0")
	}
	if c.Progress.Redis.Enabled && c.Progress.Redis.Addr == "" {
		return fmt.Errorf("progress.redis.addr must be set when the redis sink is enabled")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case StorageMemory:
		return nil
	case StorageLocal:
		if s.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for local storage")
		}
	case StorageGCS:
		if s.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for gcs storage")
		}
	case StorageS3:
		if s.Bucket == "" || s.S3.Region == "" {
			return fmt.Errorf("storage.bucket and storage.s3.region must be set for s3 storage")
		}
	case StorageMinIO:
		if s.Bucket == "" || s.MinIO.Endpoint == "" {
			return fmt.Errorf("storage.bucket and storage.minio.endpoint must be set for minio storage")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", s.Backend)
	}
	return nil
}

// RequestTimeout is the per-request HTTP budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// MaxUploadBytes caps bulk upload bodies.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// JobTimeout bounds a single bulk job delivery.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Queue.JobTimeoutSeconds) * time.Second
}

// RetryDelay is the base backoff between in-process redeliveries.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Queue.RetryDelayMs) * time.Millisecond
}
