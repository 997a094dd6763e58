package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrConfigLoad   = fmt.Errorf("failed to load configuration")
)

// Sentinel errors for the connection and delivery layers.
var (
	// Input validation: reported before any network attempt, never retried.
	ErrInvalidURL = fmt.Errorf("invalid websocket url: %w", ErrInvalidInput)

	// Connection lifecycle.
	ErrConnectInProgress = fmt.Errorf("connection already in progress")
	ErrNotConnected      = fmt.Errorf("not connected")
	ErrTransport         = fmt.Errorf("transport error")
	ErrConnectAborted    = fmt.Errorf("connect aborted by disconnect")

	// Delivery.
	ErrReconnectFailed = fmt.Errorf("reconnection failed")
	ErrRunStopped      = fmt.Errorf("run stopped")

	// Payload source.
	ErrPayloadSetNotFound = fmt.Errorf("payload set not found")
	ErrUnknownEncoding    = fmt.Errorf("unknown payload encoding: %w", ErrInvalidInput)
	ErrUnknownProtocol    = fmt.Errorf("unknown protocol: %w", ErrInvalidInput)
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Conn.Connect")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed
// on a later connect attempt. Validation failures are never retryable.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidInput) {
		return false
	}
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNotConnected) || errors.Is(err, ErrReconnectFailed)
}
