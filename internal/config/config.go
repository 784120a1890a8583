// Package config loads importer settings from environment variables with
// defaults, and validates them on startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Store      StoreConfig
	Import     ImportConfig
	MarketData MarketDataConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight imports (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-import requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Required for the postgres driver.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is postgres or sqlite (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `env:"SQLITE_PATH" default:"data/portfolio.db"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the number of imports that may run at once (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWait is how long an import waits for a free slot (default: 30s)
	MaxWait time.Duration `env:"IMPORT_MAX_WAIT" default:"30s"`

	// Timeout bounds a single import run (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// DefaultCurrency is used for new accounts when none is given.
	DefaultCurrency string `env:"IMPORT_DEFAULT_CURRENCY" default:"USD"`

	// MaxWarnings and MaxErrors truncate the lists returned to API callers.
	MaxWarnings int `env:"IMPORT_MAX_WARNINGS" default:"100"`
	MaxErrors   int `env:"IMPORT_MAX_ERRORS" default:"50"`
}

// MarketDataConfig configures the external security-metadata providers.
type MarketDataConfig struct {
	Enabled bool `env:"MARKETDATA_ENABLED" default:"true"`

	AlphaVantageURL string `env:"ALPHAVANTAGE_URL" default:"https://www.alphavantage.co"`
	AlphaVantageKey string `env:"ALPHAVANTAGE_API_KEY" envAlt:"ALPHA_VANTAGE_API_KEY"`
	YahooURL        string `env:"YAHOO_FINANCE_URL" default:"https://query1.finance.yahoo.com"`

	// Timeout bounds each provider call (default: 10s)
	Timeout time.Duration `env:"MARKETDATA_TIMEOUT" default:"10s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute on import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects /api requests without a key from APIKeys.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
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
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
