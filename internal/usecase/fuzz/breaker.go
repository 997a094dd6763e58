package fuzz

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const defaultBreakerTimeout = 30 * time.Second

// BreakerConfig controls when repeated reconnect failures stop being
// attempted. The zero value disables the breaker, so every payload that
// finds the connection down gets its own reconnect attempt.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failed reconnects that opens
	// the circuit. 0 disables the breaker.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before one trial reconnect.
	Timeout time.Duration
	// Interval clears failure counts while closed. 0 never clears.
	Interval time.Duration
}

// newReconnectBreaker returns nil when cfg disables the breaker.
func newReconnectBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	if cfg.MaxFailures == 0 {
		return nil
	}
	maxFailures := cfg.MaxFailures
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "fuzz:reconnect",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// BreakerState exposes the reconnect breaker state for monitoring. A
// disabled breaker always reports closed.
func (d *Driver) BreakerState() gobreaker.State {
	if d.breaker == nil {
		return gobreaker.StateClosed
	}
	return d.breaker.State()
}
