package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventConnStatus       EventType = "conn.status"
	EventConnConnected    EventType = "conn.connected"
	EventConnDisconnected EventType = "conn.disconnected"
	EventChainReplayed    EventType = "conn.chain.replayed"
	EventFrameReceived    EventType = "frame.received"
	EventFrameCaptured    EventType = "frame.captured"
	EventMutationSent     EventType = "mutation.sent"
	EventRunCompleted     EventType = "run.completed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source,omitempty"` // connection URL or session ID
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event, marshaling payload when non-nil.
func NewEvent(t EventType, source string, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now(), Source: source}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
