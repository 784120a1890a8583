package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/portfolio-import/internal/core"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults for
// unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable lookup. Every unparsable value is
// reported, not only the first.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	if errs := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); len(errs) > 0 {
		return nil, fmt.Errorf("config load: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadStruct walks nested structs and fills every field tagged with env.
// An empty variable counts as unset and falls back to envAlt, then default.
func loadStruct(v reflect.Value, lookup func(string) (string, bool)) []error {
	var errs []error
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			errs = append(errs, loadStruct(fieldVal, lookup)...)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value, source := envValue(lookup, name, field.Tag.Get("envAlt"))
		if value == "" {
			value, source = field.Tag.Get("default"), name
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", source, value, err))
		}
	}
	return errs
}

// envValue returns the first non-empty variable among name and alt, and the
// name it came from.
func envValue(lookup func(string) (string, bool), name, alt string) (string, string) {
	for _, n := range []string{name, alt} {
		if n == "" {
			continue
		}
		if v, ok := lookup(n); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), n
		}
	}
	return "", name
}

// setField parses value into field according to its type.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres store driver")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required for the sqlite store driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: postgres, sqlite", c.Store.Driver))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWait <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}
	if c.Import.MaxWarnings < 0 || c.Import.MaxErrors < 0 {
		errs = append(errs, "IMPORT_MAX_WARNINGS and IMPORT_MAX_ERRORS must be non-negative")
	}
	if !core.IsSupportedCurrency(c.Import.DefaultCurrency) {
		errs = append(errs, fmt.Sprintf("IMPORT_DEFAULT_CURRENCY (%q) is not a supported currency", c.Import.DefaultCurrency))
	}

	if c.MarketData.Enabled && c.MarketData.Timeout <= 0 {
		errs = append(errs, "MARKETDATA_TIMEOUT must be positive when market data is enabled")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ImportLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a representation of the config that is safe to log.
// The database URL and all API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Store: {Driver: %q, SQLitePath: %q}, ", c.Store.Driver, c.Store.SQLitePath)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.Timeout)
	fmt.Fprintf(&b, "MarketData: {Enabled: %v, AlphaVantageKey: %s}, ",
		c.MarketData.Enabled, mask(c.MarketData.AlphaVantageKey))
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
