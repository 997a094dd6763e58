package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wsfuzz/internal/domain"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if cfg.Connection.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.Connection.ConnectTimeout)
	}
	if cfg.Connection.ReplayDelay != 200*time.Millisecond {
		t.Errorf("ReplayDelay = %v, want 200ms", cfg.Connection.ReplayDelay)
	}
	if cfg.Fuzz.ReconnectWait != 500*time.Millisecond {
		t.Errorf("ReconnectWait = %v, want 500ms", cfg.Fuzz.ReconnectWait)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Probe.ResponseWindow != 3*time.Second {
		t.Errorf("expected defaults, got ResponseWindow=%v", cfg.Probe.ResponseWindow)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.HistoryLimit != 10_000 {
		t.Errorf("HistoryLimit = %d", cfg.Capture.HistoryLimit)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wsfuzz.yaml")
	content := `
logger:
  level: "debug"
connection:
  connect_timeout: 3s
  headers:
    Cookie: "session=abc"
  subprotocol: "graphql-transport-ws"
  state_chain:
    - '40'
    - '42["join",{"room":"lobby"}]'
fuzz:
  delay: 150ms
  encoding: url
  max_rate: 20
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Connection.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want 3s", cfg.Connection.ConnectTimeout)
	}
	if cfg.Connection.Headers["Cookie"] != "session=abc" {
		t.Errorf("Headers = %v", cfg.Connection.Headers)
	}
	if len(cfg.Connection.StateChain) != 2 || cfg.Connection.StateChain[1] != `42["join",{"room":"lobby"}]` {
		t.Errorf("StateChain = %v", cfg.Connection.StateChain)
	}
	if cfg.Fuzz.Delay != 150*time.Millisecond {
		t.Errorf("Delay = %v, want 150ms", cfg.Fuzz.Delay)
	}
	if cfg.Fuzz.MaxRate != 20 {
		t.Errorf("MaxRate = %v, want 20", cfg.Fuzz.MaxRate)
	}
	// untouched sections keep their defaults
	if cfg.Fuzz.BreakerMaxFailures != 0 {
		t.Errorf("BreakerMaxFailures = %d, want 0 (breaker off)", cfg.Fuzz.BreakerMaxFailures)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("logger: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !errors.Is(err, domain.ErrConfigLoad) {
		t.Errorf("error = %v, want ErrConfigLoad", err)
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.yaml")
	if err := os.WriteFile(path, []byte("logger:\n  level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected permission error")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("fuzz:\n  encoding: rot13\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("WSFUZZ_LOGGER_LEVEL", "error")
	t.Setenv("WSFUZZ_TRACER_ENABLED", "true")
	t.Setenv("WSFUZZ_TRACER_EXPORTER", "stdout")
	t.Setenv("WSFUZZ_CONNECTION_TIMEOUT", "2s")
	t.Setenv("WSFUZZ_FUZZ_DELAY", "1s")
	t.Setenv("WSFUZZ_FUZZ_MAX_RATE", "7.5")
	t.Setenv("WSFUZZ_FUZZ_ENCODING", "base64")
	t.Setenv("WSFUZZ_CAPTURE_HISTORY_LIMIT", "50")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "error" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
	if cfg.Connection.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.Connection.ConnectTimeout)
	}
	if cfg.Fuzz.Delay != time.Second || cfg.Fuzz.MaxRate != 7.5 || cfg.Fuzz.Encoding != "base64" {
		t.Errorf("Fuzz = %+v", cfg.Fuzz)
	}
	if cfg.Capture.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d", cfg.Capture.HistoryLimit)
	}
}

func TestApplyEnvOverridesIgnoresMalformed(t *testing.T) {
	t.Setenv("WSFUZZ_CONNECTION_TIMEOUT", "soon")
	t.Setenv("WSFUZZ_FUZZ_MAX_RATE", "-3")
	t.Setenv("WSFUZZ_CAPTURE_HISTORY_LIMIT", "many")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Connection.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want default", cfg.Connection.ConnectTimeout)
	}
	if cfg.Fuzz.MaxRate != 0 {
		t.Errorf("MaxRate = %v, want 0", cfg.Fuzz.MaxRate)
	}
	if cfg.Capture.HistoryLimit != 10_000 {
		t.Errorf("HistoryLimit = %d, want default", cfg.Capture.HistoryLimit)
	}
}
