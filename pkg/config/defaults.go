package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "0.0.0.0:9527"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Store defaults
	DefaultStorePath = "data/relay.db"

	// Gateway defaults
	DefaultCooldownWindow = 30 * time.Minute
	DefaultShowChat       = false

	// Sync defaults
	DefaultSyncInterval      = 5 * time.Minute
	DefaultSyncForceInterval = 8 * time.Hour

	// Egress defaults
	DefaultEgressListURL         = "https://proxy.webshare.io/api/v2/proxy/list"
	DefaultEgressPageSize        = 100
	DefaultEgressRefreshDebounce = 5 * time.Minute

	// Logging defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultLoggingRedactSecrets = true

	// Tracing defaults
	DefaultTracingEnabled     = false
	DefaultTracingServiceName = "relay"
)

// ApplyDefaults fills in default values for any zero-valued fields.
// Explicit values from the YAML file or environment are never
// overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		// Streaming chat completions can run for minutes; the write
		// timeout has to cover the whole response.
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}

	if cfg.Gateway.CooldownWindow == 0 {
		cfg.Gateway.CooldownWindow = DefaultCooldownWindow
	}

	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = DefaultSyncInterval
	}
	if cfg.Sync.ForceInterval == 0 {
		cfg.Sync.ForceInterval = DefaultSyncForceInterval
	}

	if cfg.Egress.ListURL == "" {
		cfg.Egress.ListURL = DefaultEgressListURL
	}
	if cfg.Egress.PageSize == 0 {
		cfg.Egress.PageSize = DefaultEgressPageSize
	}
	if cfg.Egress.RefreshDebounce == 0 {
		cfg.Egress.RefreshDebounce = DefaultEgressRefreshDebounce
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
}

// NewDefaultConfig returns a configuration populated entirely from
// defaults. Useful for tests and for running without a config file.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{RedactSecrets: DefaultLoggingRedactSecrets},
	}
	ApplyDefaults(cfg)
	return cfg
}
