package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path, applies defaults and validates the result. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for
// that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := &Config{
		Logging: LoggingConfig{RedactSecrets: DefaultLoggingRedactSecrets},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables
// follow the naming convention RELAY_SECTION_FIELD (for example
// RELAY_SERVER_LISTEN_ADDRESS) and always take precedence over the
// file.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDefaults builds a configuration from defaults and environment
// variable overrides alone, for running without a config file.
func LoadDefaults() (*Config, error) {
	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Secrets (RELAY_AUTH_SECRET, RELAY_WEBSHARE_TOKEN)
// only exist as environment variables.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("RELAY_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("RELAY_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("RELAY_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("RELAY_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("RELAY_SERVER_MAX_HEADER_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxHeaderBytes = i
		}
	}

	// Store overrides
	if val := os.Getenv("RELAY_STORE_PATH"); val != "" {
		cfg.Store.Path = val
	}

	// Gateway overrides
	if val := os.Getenv("RELAY_AUTH_SECRET"); val != "" {
		cfg.Gateway.AuthSecret = val
	}
	if val := os.Getenv("RELAY_GATEWAY_COOLDOWN_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Gateway.CooldownWindow = d
		}
	}
	if val := os.Getenv("RELAY_GATEWAY_SHOW_CHAT"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.ShowChat = b
		}
	}

	// Sync overrides
	if val := os.Getenv("RELAY_SYNC_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Sync.Interval = d
		}
	}
	if val := os.Getenv("RELAY_SYNC_FORCE_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Sync.ForceInterval = d
		}
	}

	// Egress overrides
	if val := os.Getenv("RELAY_EGRESS_LIST_URL"); val != "" {
		cfg.Egress.ListURL = val
	}
	if val := os.Getenv("RELAY_WEBSHARE_TOKEN"); val != "" {
		cfg.Egress.Token = val
	}
	if val := os.Getenv("RELAY_EGRESS_PAGE_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Egress.PageSize = i
		}
	}
	if val := os.Getenv("RELAY_EGRESS_REFRESH_DEBOUNCE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Egress.RefreshDebounce = d
		}
	}

	// Logging overrides
	if val := os.Getenv("RELAY_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("RELAY_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("RELAY_LOGGING_REDACT_SECRETS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging.RedactSecrets = b
		}
	}

	// Tracing overrides
	if val := os.Getenv("RELAY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("RELAY_TRACING_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
	}
	if val := os.Getenv("RELAY_TRACING_SERVICE_NAME"); val != "" {
		cfg.Tracing.ServiceName = val
	}
}
