// Package config loads the server and CLI configuration from the environment.
// Defaults cover everything except the database URL; Validate reports every
// problem at once so a bad deploy fails on the first start.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sync     SyncConfig
	Redis    RedisConfig
	Schedule ScheduleConfig
	PubSub   PubSubConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout must outlast a full sync since POST /api/sync answers
	// only when the run is finalized.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"6m"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. DB_URL is accepted as well.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SyncConfig controls reconciliation runs.
type SyncConfig struct {
	// Threshold is the lowest room number belonging to the day hospital.
	Threshold int `env:"SYNC_DAY_HOSPITAL_THRESHOLD" default:"3000"`

	// MaxFileSize caps roster uploads in bytes. Accepts KB/MB/GB suffixes.
	MaxFileSize int64 `env:"SYNC_MAX_FILE_SIZE" default:"20MB"`

	Timeout time.Duration `env:"SYNC_TIMEOUT" default:"5m"`

	// LockWait is how long a real run waits for the in-process run slot.
	LockWait time.Duration `env:"SYNC_LOCK_WAIT" default:"5s"`

	// AtomicApply runs all registry writes of a run in one transaction.
	AtomicApply bool `env:"SYNC_ATOMIC_APPLY" default:"false"`
}

// RedisConfig enables the cross-process run lock. Empty Address disables it.
type RedisConfig struct {
	Address  string        `env:"REDIS_ADDRESS" envAlt:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" default:"0"`
	LockKey  string        `env:"SYNC_LOCK_KEY" default:"dayroster:sync"`
	LockTTL  time.Duration `env:"SYNC_LOCK_TTL" default:"10m"`
}

// ScheduleConfig controls the daily roster import.
type ScheduleConfig struct {
	Enabled  bool   `env:"SCHEDULE_ENABLED" default:"false"`
	Time     string `env:"SCHEDULE_TIME" default:"08:15"`
	Timezone string `env:"SCHEDULE_TIMEZONE" default:"Asia/Seoul"`

	// GCSBucket and GCSObject locate the roster in Cloud Storage. File is a
	// local path used when no bucket is configured.
	GCSBucket          string `env:"SCHEDULE_GCS_BUCKET"`
	GCSObject          string `env:"SCHEDULE_GCS_OBJECT"`
	File               string `env:"SCHEDULE_FILE"`
	GCSCredentialsJSON string `env:"GCS_CREDENTIALS_JSON"`
}

// UsesGCS reports whether the scheduled roster comes from Cloud Storage.
func (c *ScheduleConfig) UsesGCS() bool {
	return c.GCSBucket != ""
}

// PubSubConfig enables run notifications. Empty Topic disables them.
type PubSubConfig struct {
	ProjectID       string `env:"PUBSUB_PROJECT_ID" envAlt:"GOOGLE_CLOUD_PROJECT"`
	Topic           string `env:"PUBSUB_TOPIC"`
	CredentialsJSON string `env:"PUBSUB_CREDENTIALS_JSON"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SyncLimit is requests per minute for POST /api/sync.
	SyncLimit int `env:"RATE_LIMIT_SYNC" default:"5"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
