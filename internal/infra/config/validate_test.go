package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "verbose"
	cfg.Tracer.Exporter = "jaeger"
	cfg.Connection.ConnectTimeout = 0
	cfg.Fuzz.Delay = -time.Second
	cfg.Capture.HistoryLimit = 0

	err := Validate(cfg)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Errors) != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", len(ve.Errors), ve.Errors)
	}
	if !strings.Contains(err.Error(), "logger.level") {
		t.Errorf("error text missing logger.level: %s", err)
	}
}

func TestValidateBreaker(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default (breaker off) should validate: %v", err)
	}

	cfg.Fuzz.BreakerMaxFailures = 3
	cfg.Fuzz.BreakerTimeout = 0
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "fuzz.breaker_timeout") {
		t.Errorf("expected breaker_timeout error, got %v", err)
	}
}

func TestValidateHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantErr bool
	}{
		{"ok", map[string]string{"Cookie": "a=b", "Origin": "https://x"}, false},
		{"reserved", map[string]string{"Sec-WebSocket-Key": "x"}, true},
		{"reserved lowercase", map[string]string{"host": "x"}, true},
		{"blank", map[string]string{" ": "x"}, true},
		{"injection", map[string]string{"X-A\r\nX-B": "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Connection.Headers = tt.headers
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEncoding(t *testing.T) {
	for _, enc := range []string{"", "none", "URL", "base64", "double-url", "unicode"} {
		cfg := Defaults()
		cfg.Fuzz.Encoding = enc
		if err := Validate(cfg); err != nil {
			t.Errorf("encoding %q: unexpected error %v", enc, err)
		}
	}
	cfg := Defaults()
	cfg.Fuzz.Encoding = "hex"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestValidateSampleRatio(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.SampleRatio = 1.5
	if err := Validate(cfg); err == nil {
		t.Error("expected error for sample_ratio > 1")
	}
}
