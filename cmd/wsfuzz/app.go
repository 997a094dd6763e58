package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"wsfuzz/internal/adapter/payloads"
	"wsfuzz/internal/adapter/transport"
	"wsfuzz/internal/infra/config"
	"wsfuzz/internal/infra/logger"
	"wsfuzz/internal/infra/tracer"
	"wsfuzz/internal/usecase/eventbus"
	"wsfuzz/internal/usecase/fuzz"
)

// app holds the process-wide components shared by subcommands.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	log      *slog.Logger
	bus      *eventbus.Bus
	closeLog func() error
	shutdown func(context.Context) error
}

func defaultConfigPath() string {
	if p := os.Getenv("WSFUZZ_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "wsfuzz.yaml"
	}
	return filepath.Join(home, ".wsfuzz", "config.yaml")
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logger.Level = a.logLevel
	}
	a.cfg = cfg

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeLog

	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	a.shutdown = shutdown
	a.bus = eventbus.New(log)
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.bus != nil {
		a.bus.Close()
	}
	var err error
	if a.shutdown != nil {
		err = a.shutdown(context.WithoutCancel(ctx))
	}
	if a.closeLog != nil {
		a.closeLog()
	}
	return err
}

func (a *app) transportOptions() transport.Options {
	c := a.cfg.Connection
	return transport.Options{
		ConnectTimeout:      c.ConnectTimeout,
		ReplayDelay:         c.ReplayDelay,
		DefaultPingInterval: c.PingInterval,
		ReadLimit:           c.ReadLimit,
		HTTPClient:          transport.NewHTTPClient(c.ConnectTimeout, c.MaxIdleConns),
	}
}

// newConn builds a connection carrying the configured headers, subprotocol
// and state chain.
func (a *app) newConn() *transport.Conn {
	c := transport.New(a.transportOptions(), a.log, a.bus)
	c.SetHeaders(a.cfg.Connection.Headers)
	c.SetSubprotocol(a.cfg.Connection.Subprotocol)
	c.SetStateChain(a.cfg.Connection.StateChain)
	return c
}

// newBareConn builds a connection with no credentials, for probes.
func (a *app) newBareConn() fuzz.ProbeConn {
	return transport.New(a.transportOptions(), a.log, a.bus)
}

func (a *app) driverConfig() fuzz.Config {
	f := a.cfg.Fuzz
	return fuzz.Config{
		ReconnectTimeout: f.ReconnectTimeout,
		ReconnectWait:    f.ReconnectWait,
		MaxRate:          f.MaxRate,
		Breaker: fuzz.BreakerConfig{
			MaxFailures: f.BreakerMaxFailures,
			Timeout:     f.BreakerTimeout,
		},
	}
}

func (a *app) probeOptions() fuzz.ProbeOptions {
	p := a.cfg.Probe
	opts := fuzz.DefaultProbeOptions()
	opts.ConnectTimeout = p.ConnectTimeout
	opts.Settle = p.Settle
	opts.ResponseWindow = p.ResponseWindow
	opts.EnumDelay = p.EnumDelay
	return opts
}

// catalog returns the built-in sets plus any configured payload files,
// each registered under its base name.
func (a *app) catalog() (*payloads.Catalog, error) {
	c := payloads.Builtin()
	for _, path := range a.cfg.Fuzz.PayloadFiles {
		items, err := payloads.LoadFile(path)
		if err != nil {
			return nil, err
		}
		c.Add(filepath.Base(path), items)
	}
	return c, nil
}
