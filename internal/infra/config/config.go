package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"wsfuzz/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Connection ConnectionConfig `yaml:"connection"`
	Fuzz       FuzzConfig       `yaml:"fuzz"`
	Probe      ProbeConfig      `yaml:"probe"`
	Capture    CaptureConfig    `yaml:"capture"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"` // stdout, stderr, discard or a file path
	// Redact lists attribute keys whose values are masked in log output.
	Redact []string `yaml:"redact"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"` // 0 or 1 samples everything
}

// ConnectionConfig holds WebSocket client settings.
type ConnectionConfig struct {
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
	ReplayDelay    time.Duration     `yaml:"replay_delay"`
	PingInterval   time.Duration     `yaml:"ping_interval"` // fallback when the server does not announce one
	ReadLimit      int64             `yaml:"read_limit"`
	Headers        map[string]string `yaml:"headers"`
	Subprotocol    string            `yaml:"subprotocol"`
	StateChain     []string          `yaml:"state_chain"`
	MaxIdleConns   int               `yaml:"max_idle_conns"`
}

// FuzzConfig holds fuzz run settings.
type FuzzConfig struct {
	Delay              time.Duration `yaml:"delay"`
	Encoding           string        `yaml:"encoding"`
	MaxRate            float64       `yaml:"max_rate"`
	ReconnectTimeout   time.Duration `yaml:"reconnect_timeout"`
	ReconnectWait      time.Duration `yaml:"reconnect_wait"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
	PayloadFiles       []string      `yaml:"payload_files"`
}

// ProbeConfig holds quick-probe timings.
type ProbeConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Settle         time.Duration `yaml:"settle"`
	ResponseWindow time.Duration `yaml:"response_window"`
	EnumDelay      time.Duration `yaml:"enum_delay"`
}

// CaptureConfig holds capture recorder settings.
type CaptureConfig struct {
	HistoryLimit int `yaml:"history_limit"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
			Redact: []string{"cookie", "authorization"},
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Connection: ConnectionConfig{
			ConnectTimeout: 10 * time.Second,
			ReplayDelay:    200 * time.Millisecond,
			PingInterval:   25 * time.Second,
			ReadLimit:      16 << 20,
			MaxIdleConns:   10,
		},
		Fuzz: FuzzConfig{
			Encoding:           "none",
			ReconnectTimeout:   10 * time.Second,
			ReconnectWait:      500 * time.Millisecond,
			BreakerMaxFailures: 0,
			BreakerTimeout:     30 * time.Second,
		},
		Probe: ProbeConfig{
			ConnectTimeout: 5 * time.Second,
			Settle:         500 * time.Millisecond,
			ResponseWindow: 3 * time.Second,
			EnumDelay:      200 * time.Millisecond,
		},
		Capture: CaptureConfig{
			HistoryLimit: 10_000,
		},
	}
}

// Load reads a YAML config file, overlays it on defaults, applies WSFUZZ_*
// env overrides and validates the result. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrConfigLoad, path, err)
		default:
			absPath, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("resolve config path: %w", err)
			}
			if err := validatePermissions(absPath); err != nil {
				return nil, err
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfigLoad, path, err)
			}
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps WSFUZZ_* env vars to config fields. Malformed
// numeric and duration values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WSFUZZ_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WSFUZZ_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("WSFUZZ_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("WSFUZZ_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("WSFUZZ_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	envDuration("WSFUZZ_CONNECTION_TIMEOUT", &cfg.Connection.ConnectTimeout)
	envDuration("WSFUZZ_CONNECTION_REPLAY_DELAY", &cfg.Connection.ReplayDelay)
	if v := os.Getenv("WSFUZZ_CONNECTION_SUBPROTOCOL"); v != "" {
		cfg.Connection.Subprotocol = v
	}
	envDuration("WSFUZZ_FUZZ_DELAY", &cfg.Fuzz.Delay)
	if v := os.Getenv("WSFUZZ_FUZZ_ENCODING"); v != "" {
		cfg.Fuzz.Encoding = v
	}
	if v := os.Getenv("WSFUZZ_FUZZ_MAX_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Fuzz.MaxRate = f
		}
	}
	if v := os.Getenv("WSFUZZ_FUZZ_PAYLOAD_FILES"); v != "" {
		cfg.Fuzz.PayloadFiles = strings.Split(v, string(os.PathListSeparator))
	}
	envDuration("WSFUZZ_PROBE_RESPONSE_WINDOW", &cfg.Probe.ResponseWindow)
	if v := os.Getenv("WSFUZZ_CAPTURE_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Capture.HistoryLimit = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}

// validatePermissions rejects config files writable by group or others,
// since they may carry session cookies in connection.headers.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
