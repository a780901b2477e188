// Package logging provides the gateway's structured logging with
// secret redaction.
//
// The gateway handles two classes of secrets on every request: provider
// API keys and egress proxy credentials. The redactor guarantees that
// neither ever reaches a log sink in full, regardless of which
// component logged it.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output format.
type Format string

const (
	// FormatJSON outputs logs as JSON, one object per line.
	FormatJSON Format = "json"
	// FormatText outputs logs as logfmt-style text.
	FormatText Format = "text"
)

// Config contains logger configuration.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string

	// Format is "json" or "text".
	Format string

	// RedactSecrets masks API keys and proxy credentials in attributes.
	RedactSecrets bool

	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// New builds a slog.Logger from the configuration. The returned
// LevelVar can be used to change the level at runtime, which the
// config watcher does on file changes.
func New(cfg Config) (*slog.Logger, *slog.LevelVar, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(level)

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: levelVar}
	if cfg.RedactSecrets {
		opts.ReplaceAttr = redactAttr
	}

	var handler slog.Handler
	switch Format(strings.ToLower(cfg.Format)) {
	case FormatJSON, "":
		handler = slog.NewJSONHandler(writer, opts)
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(handler), levelVar, nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
