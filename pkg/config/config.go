// Package config loads, validates and watches the gateway
// configuration.
//
// Configuration comes from a YAML file with RELAY_* environment
// variable overrides; secrets (the store path aside) are expected to
// arrive via environment only so they never land in a config file.
package config

import "time"

// Config is the root gateway configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Gateway GatewayConfig `yaml:"gateway"`
	Sync    SyncConfig    `yaml:"sync"`
	Egress  EgressConfig  `yaml:"egress"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	ListenAddress  string        `yaml:"listen_address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// StoreConfig configures the SQLite backing store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// GatewayConfig configures the request pipeline.
type GatewayConfig struct {
	// AuthSecret is the shared inbound bearer secret.
	// Environment only: RELAY_AUTH_SECRET.
	AuthSecret string `yaml:"-"`

	// CooldownWindow is how long a rate-limited key stays flagged.
	CooldownWindow time.Duration `yaml:"cooldown_window"`

	// ShowChat logs chat request bodies when true. Toggleable at
	// runtime via the admin endpoint.
	ShowChat bool `yaml:"show_chat"`
}

// SyncConfig configures the credential sync engine.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval"`
	ForceInterval time.Duration `yaml:"force_interval"`
}

// EgressConfig configures the rotating proxy pool.
type EgressConfig struct {
	// ListURL is the proxy-list API endpoint.
	ListURL string `yaml:"list_url"`

	// Token authenticates against the list API.
	// Environment only: RELAY_WEBSHARE_TOKEN.
	Token string `yaml:"-"`

	// PageSize is the list API page size.
	PageSize int `yaml:"page_size"`

	// RefreshDebounce is the minimum gap between hot-path refreshes.
	RefreshDebounce time.Duration `yaml:"refresh_debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	RedactSecrets bool   `yaml:"redact_secrets"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}
