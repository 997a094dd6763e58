// Package fuzz delivers templated payload variants over a live connection,
// recovering from mid-run disconnects and correlating responses.
package fuzz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"wsfuzz/internal/adapter/mutate"
	"wsfuzz/internal/domain"
	"wsfuzz/internal/infra/tracer"
)

// Connection is the subset of transport.Conn the driver needs.
type Connection interface {
	State() domain.ConnectionState
	Reconnect(ctx context.Context) error
	Send(ctx context.Context, msg string) error
}

// Config tunes a Driver.
type Config struct {
	ReconnectTimeout time.Duration // bound on one reconnect attempt
	ReconnectWait    time.Duration // settle time after a successful reconnect
	MaxRate          float64       // frames per second, 0 = unlimited
	Breaker          BreakerConfig
}

// DefaultConfig returns the stock driver settings.
func DefaultConfig() Config {
	return Config{
		ReconnectTimeout: 10 * time.Second,
		ReconnectWait:    500 * time.Millisecond,
	}
}

// Job is one fuzz run. Markers take precedence over Fields.
type Job struct {
	Template string
	Fields   []string
	Markers  []string
	Payloads []string
	Delay    time.Duration
	Encoding mutate.Encoding
	Protocol domain.Protocol // used to recognise control frames among responses
}

// Driver runs fuzz jobs one at a time over a shared connection.
type Driver struct {
	conn    Connection
	cfg     Config
	logger  *slog.Logger
	bus     domain.EventBus
	breaker *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter

	running atomic.Bool
	stopped atomic.Bool

	correlator
}

// NewDriver creates a driver over conn. bus may be nil.
func NewDriver(conn Connection, cfg Config, logger *slog.Logger, bus domain.EventBus) *Driver {
	if cfg.ReconnectTimeout <= 0 {
		cfg.ReconnectTimeout = DefaultConfig().ReconnectTimeout
	}
	d := &Driver{
		conn:    conn,
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		breaker: newReconnectBreaker(cfg.Breaker, logger),
	}
	if cfg.MaxRate > 0 {
		burst := int(cfg.MaxRate)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRate), burst)
	}
	d.correlator.reset(domain.ProtocolRaw)
	return d
}

// Stop asks a running job to finish after the current payload.
func (d *Driver) Stop() {
	d.stopped.Store(true)
}

// Running reports whether a job is in progress.
func (d *Driver) Running() bool {
	return d.running.Load()
}

// Run sends one frame per payload in strict index order and returns one
// result per attempted payload. Delivery failures are recorded in the
// result and never abort the run. Run returns ErrRunStopped with the partial
// results when Stop is called or ctx ends.
func (d *Driver) Run(ctx context.Context, job Job, onResult func(domain.MutationResult)) ([]domain.MutationResult, error) {
	if !d.running.CompareAndSwap(false, true) {
		return nil, domain.NewDomainError("Driver.Run", domain.ErrInvalidInput, "a run is already in progress")
	}
	defer d.running.Store(false)
	d.stopped.Store(false)

	plan := mutate.Plan{Template: job.Template, Fields: job.Fields, Markers: job.Markers, Encoding: job.Encoding}
	mode := "field"
	if plan.MarkerMode() {
		mode = "marker"
	}

	ctx, span := tracer.StartSpan(ctx, "fuzz.run")
	defer span.End()
	span.SetAttributes(
		tracer.IntAttr("fuzz.payloads", len(job.Payloads)),
		tracer.StringAttr("fuzz.mode", mode),
		tracer.StringAttr("fuzz.protocol", job.Protocol.String()),
	)

	d.correlator.reset(job.Protocol)
	d.logger.Info("fuzz run started", "payloads", len(job.Payloads), "mode", mode)

	results := make([]domain.MutationResult, 0, len(job.Payloads))
	var runErr error
	for i, payload := range job.Payloads {
		if d.stopped.Load() || ctx.Err() != nil {
			runErr = domain.NewDomainError("Driver.Run", domain.ErrRunStopped, fmt.Sprintf("after %d of %d", i, len(job.Payloads)))
			break
		}

		res := d.deliver(ctx, i, payload, plan)
		results = append(results, res)
		d.publish(ctx, domain.EventMutationSent, res)
		if onResult != nil {
			onResult(res)
		}

		if job.Delay > 0 && i < len(job.Payloads)-1 {
			if !sleep(ctx, job.Delay) {
				runErr = domain.NewDomainError("Driver.Run", domain.ErrRunStopped, ctx.Err().Error())
				break
			}
		}
	}

	sent := 0
	for _, r := range results {
		if r.Sent {
			sent++
		}
	}
	span.SetAttributes(tracer.IntAttr("fuzz.sent", sent))
	if runErr != nil {
		tracer.RecordError(span, runErr)
	} else {
		tracer.SetOK(span)
	}
	d.logger.Info("fuzz run finished", "attempted", len(results), "sent", sent)
	d.publish(ctx, domain.EventRunCompleted, map[string]int{"attempted": len(results), "sent": sent})
	return results, runErr
}

func (d *Driver) deliver(ctx context.Context, index int, payload string, plan mutate.Plan) domain.MutationResult {
	res := domain.MutationResult{Index: index, Payload: payload}

	if d.conn.State() != domain.StateConnected {
		d.logger.Info("connection lost, reconnecting", "index", index)
		if err := d.reconnect(ctx); err != nil {
			d.logger.Warn("reconnect failed", "index", index, "error", err)
			res.Diagnostic = err.Error()
			return res
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			res.Diagnostic = err.Error()
			return res
		}
	}

	res.Frame = plan.Render(payload)
	d.correlator.sent(index, payload)
	if err := d.conn.Send(ctx, res.Frame); err != nil {
		res.Diagnostic = err.Error()
		return res
	}
	res.Sent = true
	return res
}

// reconnect re-establishes the connection, through the circuit breaker when
// one is configured.
func (d *Driver) reconnect(ctx context.Context) error {
	attempt := func() (struct{}, error) {
		rctx, cancel := context.WithTimeout(ctx, d.cfg.ReconnectTimeout)
		defer cancel()
		return struct{}{}, d.conn.Reconnect(rctx)
	}
	var err error
	if d.breaker != nil {
		_, err = d.breaker.Execute(attempt)
	} else {
		_, err = attempt()
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open: %w", domain.ErrReconnectFailed, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrReconnectFailed, err)
	}
	if d.cfg.ReconnectWait > 0 {
		sleep(ctx, d.cfg.ReconnectWait)
	}
	return nil
}

func (d *Driver) publish(ctx context.Context, t domain.EventType, payload any) {
	if d.bus != nil {
		d.bus.Publish(ctx, domain.NewEvent(t, "fuzz", payload))
	}
}

// sleep waits for d or until ctx ends, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// correlator attributes inbound frames to the most recently sent payload.
type correlator struct {
	mu          sync.Mutex
	protocol    domain.Protocol
	lastIndex   int
	lastPayload string
	responses   []Response
	onResponse  func(Response)
}

func (c *correlator) reset(p domain.Protocol) {
	c.mu.Lock()
	c.protocol = p
	c.lastIndex = -1
	c.lastPayload = ""
	c.responses = nil
	c.mu.Unlock()
}

func (c *correlator) sent(index int, payload string) {
	c.mu.Lock()
	c.lastIndex = index
	c.lastPayload = payload
	c.mu.Unlock()
}
