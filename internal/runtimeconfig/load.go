package runtimeconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STATUSFOR_"

// Load starts from DefaultConfig, overlays the YAML file at path when path is
// not empty, then applies STATUSFOR_* environment overrides and validates the
// result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = parsed
		return nil
	}

	str("LOG_PROVIDER", &cfg.Logging.Provider)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	if v, ok := lookup(EnvPrefix + "LOG_FOCUS"); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.Focus = splitList(v)
	}
	str("STORAGE_DIALECT", &cfg.Storage.Dialect)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	str("METRICS_NAMESPACE", &cfg.Metrics.Namespace)

	for key, dst := range map[string]*bool{
		"LOG_ADD_SOURCE":        &cfg.Logging.AddSource,
		"OVERWRITE_ON_ACTIVATE": &cfg.Mutations.OverwriteOnActivate,
		"IGNORE_UNKNOWN":        &cfg.Mutations.IgnoreUnknown,
		"CACHE_ENABLED":         &cfg.Cache.Enabled,
		"METRICS_ENABLED":       &cfg.Metrics.Enabled,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "CACHE_TTL"); ok && strings.TrimSpace(v) != "" {
		ttl, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sCACHE_TTL: %w", EnvPrefix, err)
		}
		cfg.Cache.TTL = ttl
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
