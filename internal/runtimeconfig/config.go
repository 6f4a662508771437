package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrLoggingProviderRequired = errors.New("statusfor config: logging provider is required")
var ErrLoggingProviderUnknown = errors.New("statusfor config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("statusfor config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("statusfor config: logging format is invalid")

// ErrStorageDialectUnknown reports a storage dialect other than sqlite or postgres.
var ErrStorageDialectUnknown = errors.New("statusfor config: storage dialect is invalid")

// ErrStorageDriverMismatch reports a driver that cannot serve the configured dialect.
var ErrStorageDriverMismatch = errors.New("statusfor config: storage driver does not match dialect")
var ErrStorageDSNRequired = errors.New("statusfor config: storage dsn is required")

// ErrCacheTTLInvalid reports a negative cache TTL.
var ErrCacheTTLInvalid = errors.New("statusfor config: cache ttl must be zero or positive")
var ErrMetricsNamespaceInvalid = errors.New("statusfor config: metrics namespace is invalid")

// Config aggregates the runtime options of the status module.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Mutations MutationsConfig `yaml:"mutations"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `yaml:"provider"`
	Level     string   `yaml:"level"`
	Format    string   `yaml:"format"`
	AddSource bool     `yaml:"add_source"`
	Focus     []string `yaml:"focus"`
}

// MutationsConfig controls how status writes behave.
type MutationsConfig struct {
	// OverwriteOnActivate refreshes the timestamp of an already active status.
	OverwriteOnActivate bool `yaml:"overwrite_on_activate"`
	// IgnoreUnknown skips unsupported status string tokens instead of failing.
	IgnoreUnknown bool `yaml:"ignore_unknown"`
}

// StorageConfig selects the database behind the bun persister.
type StorageConfig struct {
	Dialect string `yaml:"dialect"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// CacheConfig captures repository cache toggles.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// MetricsConfig controls the prometheus transition counters.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns defaults suited to an in-process sqlite setup.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		Storage: StorageConfig{
			Dialect: "sqlite",
			Driver:  "sqlite3",
			DSN:     "file::memory:?cache=shared",
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     time.Minute,
		},
		Metrics: MetricsConfig{
			Namespace: "statusfor",
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	provider := normalize(cfg.Logging.Provider)
	if provider == "" {
		return ErrLoggingProviderRequired
	}
	if !isSupportedProvider(provider) {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}

	dialect := normalize(cfg.Storage.Dialect)
	if dialect != "" {
		if !isSupportedDialect(dialect) {
			return fmt.Errorf("%w: %s", ErrStorageDialectUnknown, dialect)
		}
		if driver := normalize(cfg.Storage.Driver); driver != "" && !driverServes(driver, dialect) {
			return fmt.Errorf("%w: %s with %s", ErrStorageDriverMismatch, driver, dialect)
		}
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return ErrStorageDSNRequired
		}
	}

	if cfg.Cache.TTL < 0 {
		return ErrCacheTTLInvalid
	}
	if cfg.Metrics.Enabled && !isMetricName(cfg.Metrics.Namespace) {
		return fmt.Errorf("%w: %q", ErrMetricsNamespaceInvalid, cfg.Metrics.Namespace)
	}
	return nil
}

// DriverName returns the database/sql driver for the storage settings,
// falling back to the default driver of the dialect.
func (s StorageConfig) DriverName() string {
	if driver := normalize(s.Driver); driver != "" {
		return driver
	}
	switch normalize(s.Dialect) {
	case "postgres":
		return "pgx"
	default:
		return "sqlite3"
	}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}

func isSupportedDialect(dialect string) bool {
	switch dialect {
	case "sqlite", "postgres":
		return true
	default:
		return false
	}
}

func driverServes(driver, dialect string) bool {
	switch dialect {
	case "sqlite":
		return driver == "sqlite3" || driver == "sqlite"
	case "postgres":
		return driver == "pgx"
	default:
		return false
	}
}

func isMetricName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
