package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific
// configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g. "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides
// access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any rule fails. All errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateEgress(&cfg.Egress)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateTracing(&cfg.Tracing)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError

	if s.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	} else if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid host:port address: %v", err)})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if s.IdleTimeout < 0 {
		errs = append(errs, FieldError{"server.idle_timeout", "must not be negative"})
	}
	if s.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{"server.max_header_bytes", "must not be negative"})
	}

	return errs
}

func validateStore(s *StoreConfig) []FieldError {
	var errs []FieldError

	if s.Path == "" {
		errs = append(errs, FieldError{"store.path", "must not be empty"})
	}

	return errs
}

func validateGateway(g *GatewayConfig) []FieldError {
	var errs []FieldError

	if g.CooldownWindow <= 0 {
		errs = append(errs, FieldError{"gateway.cooldown_window", "must be positive"})
	}

	return errs
}

func validateSync(s *SyncConfig) []FieldError {
	var errs []FieldError

	if s.Interval <= 0 {
		errs = append(errs, FieldError{"sync.interval", "must be positive"})
	}
	if s.ForceInterval <= 0 {
		errs = append(errs, FieldError{"sync.force_interval", "must be positive"})
	}
	if s.ForceInterval < s.Interval {
		errs = append(errs, FieldError{"sync.force_interval", "must not be shorter than sync.interval"})
	}

	return errs
}

func validateEgress(e *EgressConfig) []FieldError {
	var errs []FieldError

	if e.ListURL == "" {
		errs = append(errs, FieldError{"egress.list_url", "must not be empty"})
	} else if u, err := url.Parse(e.ListURL); err != nil {
		errs = append(errs, FieldError{"egress.list_url", fmt.Sprintf("invalid URL: %v", err)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, FieldError{"egress.list_url", fmt.Sprintf("unsupported scheme %q, must be http or https", u.Scheme)})
	}
	if e.PageSize <= 0 {
		errs = append(errs, FieldError{"egress.page_size", "must be positive"})
	}
	if e.RefreshDebounce <= 0 {
		errs = append(errs, FieldError{"egress.refresh_debounce", "must be positive"})
	}

	return errs
}

func validateLogging(l *LoggingConfig) []FieldError {
	var errs []FieldError

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"logging.level", fmt.Sprintf("invalid level %q, must be one of: debug, info, warn, error", l.Level)})
	}
	switch l.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("invalid format %q, must be json or text", l.Format)})
	}

	return errs
}

func validateTracing(t *TracingConfig) []FieldError {
	var errs []FieldError

	if t.Enabled && t.Endpoint == "" {
		errs = append(errs, FieldError{"tracing.endpoint", "must not be empty when tracing is enabled"})
	}

	return errs
}
