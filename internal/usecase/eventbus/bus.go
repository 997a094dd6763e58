// Package eventbus fans connection, capture and fuzz events out to
// in-process observers such as the CLI printer and trace sinks.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"wsfuzz/internal/domain"
)

type subscription struct {
	id      uint64
	match   func(domain.Event) bool
	handler domain.EventHandler
}

// Bus is an in-process, goroutine-safe event bus. Handlers run on their
// own goroutines, so delivery order across events is not guaranteed.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID atomic.Uint64
	logger *slog.Logger
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Publish dispatches event to every matching subscriber. Panicking handlers
// are recovered and logged.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.match(event) {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(ctx, event, sub)
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event, sub subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					"event", string(event.Type),
					"source", event.Source,
					"panic", r,
				)
			}
		}()
		sub.handler(ctx, event)
	}()
}

func (b *Bus) add(match func(domain.Event) bool, handler domain.EventHandler) func() {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.subs = append(b.subs, subscription{id: id, match: match, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribe registers a handler for one event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.add(func(e domain.Event) bool { return e.Type == eventType }, handler)
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	return b.add(func(domain.Event) bool { return true }, handler)
}

// SubscribeSource registers a handler for events from one source, such as a
// connection URL or capture session ID.
func (b *Bus) SubscribeSource(source string, handler domain.EventHandler) func() {
	return b.add(func(e domain.Event) bool { return e.Source == source }, handler)
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops accepting events and waits for in-flight handlers.
// Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.wg.Wait()
}
