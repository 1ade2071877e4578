// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	SQL      SQLConfig
	Source   SourceConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the optional PostgreSQL connection used by catalog
// sources with backend "postgres".
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the backend.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SQLConfig holds the optional database/sql connection used by catalog
// sources with backend "sql".
type SQLConfig struct {
	// Driver is the registered driver name: sqlite or sqlserver. Empty disables the backend.
	Driver string `env:"SQL_DRIVER"`

	// DSN is the driver-specific data source name.
	DSN string `env:"SQL_DSN"`

	// MaxOpenConns caps open connections (default: 4)
	MaxOpenConns int `env:"SQL_MAX_OPEN_CONNS" default:"4"`
}

// SourceConfig holds row loading and inference settings.
type SourceConfig struct {
	// CatalogFile is a JSON file of named source definitions. Empty means no catalog.
	CatalogFile string `env:"SOURCE_CATALOG_FILE"`

	// GuessSampleSize limits type guessing to the first N rows; 0 means all (default: 0)
	GuessSampleSize int `env:"SOURCE_GUESS_SAMPLE_SIZE" default:"0"`

	// MaxBodyBytes is the largest accepted request body (default: 10MB)
	MaxBodyBytes int64 `env:"SOURCE_MAX_BODY_BYTES" default:"10485760"`

	// CSVCharset is the charset assumed for CSV bodies without a BOM (default: utf-8)
	CSVCharset string `env:"SOURCE_CSV_CHARSET" default:"utf-8"`

	// MaxConcurrentLoads bounds simultaneous catalog queries (default: 4)
	MaxConcurrentLoads int `env:"SOURCE_MAX_CONCURRENT_LOADS" default:"4"`

	// LoadWait is how long a request waits for a load slot (default: 10s)
	LoadWait time.Duration `env:"SOURCE_LOAD_WAIT" default:"10s"`

	// LoadTimeout bounds a single catalog query (default: 30s)
	LoadTimeout time.Duration `env:"SOURCE_LOAD_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Datadog metrics settings.
type MetricsConfig struct {
	// Enabled turns on the Datadog backend; otherwise metrics are discarded (default: false)
	Enabled bool `env:"METRICS_DATADOG_ENABLED" default:"false"`

	// JobName becomes the job:<name> tag (default: gridsource)
	JobName string `env:"METRICS_JOB_NAME" default:"gridsource"`

	// Tags are extra comma-separated Datadog tags
	Tags []string `env:"METRICS_TAGS"`

	// FlushEvery is the submission interval (default: 60s)
	FlushEvery time.Duration `env:"METRICS_FLUSH_EVERY" default:"60s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
