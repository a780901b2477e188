package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen_address: \"127.0.0.1:9000\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen address = %q, want file value", cfg.Server.ListenAddress)
	}
	if cfg.Gateway.CooldownWindow != DefaultCooldownWindow {
		t.Errorf("cooldown window = %v, want default %v", cfg.Gateway.CooldownWindow, DefaultCooldownWindow)
	}
	if cfg.Sync.Interval != DefaultSyncInterval {
		t.Errorf("sync interval = %v, want default %v", cfg.Sync.Interval, DefaultSyncInterval)
	}
	if cfg.Sync.ForceInterval != DefaultSyncForceInterval {
		t.Errorf("sync force interval = %v, want default %v", cfg.Sync.ForceInterval, DefaultSyncForceInterval)
	}
	if cfg.Egress.ListURL != DefaultEgressListURL {
		t.Errorf("egress list URL = %q, want default", cfg.Egress.ListURL)
	}
	if !cfg.Logging.RedactSecrets {
		t.Error("redact_secrets should default to true")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen_address: \"no-port\"\nlogging:\n  level: \"shouting\"\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "server.listen_address") {
		t.Errorf("error should name server.listen_address, got: %v", err)
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("error should name logging.level, got: %v", err)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	path := writeConfigFile(t, "sync:\n  interval: \"5m\"\nlogging:\n  level: \"info\"\n")

	t.Setenv("RELAY_SYNC_INTERVAL", "90s")
	t.Setenv("RELAY_LOGGING_LEVEL", "debug")
	t.Setenv("RELAY_AUTH_SECRET", "s3cret")
	t.Setenv("RELAY_WEBSHARE_TOKEN", "tok-123")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}

	if cfg.Sync.Interval != 90*time.Second {
		t.Errorf("sync interval = %v, want 90s from env", cfg.Sync.Interval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug from env", cfg.Logging.Level)
	}
	if cfg.Gateway.AuthSecret != "s3cret" {
		t.Errorf("auth secret not picked up from env")
	}
	if cfg.Egress.Token != "tok-123" {
		t.Errorf("egress token not picked up from env")
	}
}

func TestSecretsNotReadFromFile(t *testing.T) {
	path := writeConfigFile(t, "gateway:\n  auth_secret: \"from-file\"\negress:\n  token: \"from-file\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway.AuthSecret != "" {
		t.Errorf("auth secret must not load from file, got %q", cfg.Gateway.AuthSecret)
	}
	if cfg.Egress.Token != "" {
		t.Errorf("egress token must not load from file, got %q", cfg.Egress.Token)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.ListenAddress = ""
	cfg.Store.Path = ""
	cfg.Sync.Interval = -time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) < 3 {
		t.Errorf("collected %d errors, want at least 3: %v", len(verr.Errors), verr)
	}
}

func TestForceIntervalShorterThanInterval(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sync.Interval = time.Hour
	cfg.Sync.ForceInterval = time.Minute

	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when force_interval < interval")
	}
}

func TestNewDefaultConfigIsValid(t *testing.T) {
	if err := Validate(NewDefaultConfig()); err != nil {
		t.Fatalf("default configuration should validate: %v", err)
	}
}
