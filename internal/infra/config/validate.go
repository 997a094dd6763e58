package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateConnection(cfg, ve)
	validateFuzz(cfg, ve)
	validateProbe(cfg, ve)
	if cfg.Capture.HistoryLimit <= 0 {
		ve.Add("capture.history_limit must be > 0")
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q must be one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json", "":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q must be noop or stdout", cfg.Tracer.Exporter)
	}
	if cfg.Tracer.SampleRatio < 0 || cfg.Tracer.SampleRatio > 1 {
		ve.Add("tracer.sample_ratio must be within [0, 1]")
	}
}

// reservedHeaders mirrors the handshake headers the WebSocket client sets
// itself.
var reservedHeaders = map[string]bool{
	"host":                     true,
	"connection":               true,
	"upgrade":                  true,
	"sec-websocket-key":        true,
	"sec-websocket-version":    true,
	"sec-websocket-extensions": true,
	"sec-websocket-accept":     true,
}

func validateConnection(cfg *Config, ve *ValidationError) {
	c := cfg.Connection
	if c.ConnectTimeout <= 0 {
		ve.Add("connection.connect_timeout must be > 0")
	}
	if c.ReplayDelay < 0 {
		ve.Add("connection.replay_delay must be >= 0")
	}
	if c.PingInterval <= 0 {
		ve.Add("connection.ping_interval must be > 0")
	}
	if c.ReadLimit <= 0 {
		ve.Add("connection.read_limit must be > 0")
	}
	if c.MaxIdleConns < 0 {
		ve.Add("connection.max_idle_conns must be >= 0")
	}
	for name := range c.Headers {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\r\n:") {
			ve.Add("connection.headers: invalid header name %q", name)
			continue
		}
		if reservedHeaders[strings.ToLower(name)] {
			ve.Add("connection.headers: %q is managed by the client", name)
		}
	}
}

var encodings = []string{"none", "url", "base64", "double-url", "unicode"}

func validateFuzz(cfg *Config, ve *ValidationError) {
	f := cfg.Fuzz
	if f.Delay < 0 {
		ve.Add("fuzz.delay must be >= 0")
	}
	if f.MaxRate < 0 {
		ve.Add("fuzz.max_rate must be >= 0")
	}
	if f.ReconnectTimeout <= 0 {
		ve.Add("fuzz.reconnect_timeout must be > 0")
	}
	if f.ReconnectWait < 0 {
		ve.Add("fuzz.reconnect_wait must be >= 0")
	}
	// breaker_max_failures 0 disables the reconnect breaker
	if f.BreakerMaxFailures > 0 && f.BreakerTimeout <= 0 {
		ve.Add("fuzz.breaker_timeout must be > 0")
	}
	known := f.Encoding == ""
	for _, e := range encodings {
		if strings.EqualFold(f.Encoding, e) {
			known = true
		}
	}
	if !known {
		ve.Add("fuzz.encoding %q must be one of %s", f.Encoding, strings.Join(encodings, ", "))
	}
}

func validateProbe(cfg *Config, ve *ValidationError) {
	p := cfg.Probe
	if p.ConnectTimeout <= 0 {
		ve.Add("probe.connect_timeout must be > 0")
	}
	if p.Settle < 0 || p.ResponseWindow < 0 || p.EnumDelay < 0 {
		ve.Add("probe timings must be >= 0")
	}
}
