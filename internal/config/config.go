// Package config loads csvload settings from environment variables with
// defaults, and validates them on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Load     LoadConfig
	Upload   UploadConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, none)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For
	// headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys, when set, are required in X-API-Key on every /api request
	APIKeys []string `env:"API_KEYS"`
}

// DatabaseConfig holds database connection settings. URL is only needed by
// commands that write to Postgres.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; DATABASE_URL or DB_URL
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoadConfig holds the defaults applied to schema documents that leave a
// reader setting unset.
type LoadConfig struct {
	// Encoding is the IANA name of the input encoding (default: utf-8)
	Encoding string `env:"LOAD_ENCODING" default:"utf-8"`

	// Delimiter is a single character or "tab" (default: ",")
	Delimiter string `env:"LOAD_DELIMITER" default:","`

	// Header makes the first record name the columns (default: false)
	Header bool `env:"LOAD_HEADER" default:"false"`

	// CarryBindings keeps bindings from one line to the next (default: false)
	CarryBindings bool `env:"LOAD_CARRY_BINDINGS" default:"false"`

	// InvalidUTF8 is strict or replace (default: strict)
	InvalidUTF8 string `env:"LOAD_INVALID_UTF8" default:"strict"`

	// SchemaDir holds the YAML loader documents (default: schemas)
	SchemaDir string `env:"LOAD_SCHEMA_DIR" default:"schemas"`
}

// UploadConfig holds settings for runs submitted over HTTP.
type UploadConfig struct {
	// MaxFileSize is the maximum request body in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel runs (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a request waits for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single run (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
