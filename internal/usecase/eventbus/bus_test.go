package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wsfuzz/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func newEvent(t domain.EventType, source string) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now(), Source: source}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventFrameReceived, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventFrameReceived {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventFrameReceived, "ws://a"))
	bus.Publish(context.Background(), newEvent(domain.EventConnStatus, "ws://a"))
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventMutationSent, "fuzz"))
	bus.Publish(context.Background(), newEvent(domain.EventRunCompleted, "fuzz"))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestSubscribeSource(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeSource("session-1", func(_ context.Context, e domain.Event) {
		if e.Source != "session-1" {
			t.Errorf("unexpected source %q", e.Source)
		}
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventFrameCaptured, "session-1"))
	bus.Publish(context.Background(), newEvent(domain.EventFrameCaptured, "session-2"))
	bus.Publish(context.Background(), newEvent(domain.EventFrameCaptured, "session-1"))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var kept, removed atomic.Int32
	bus.Subscribe(domain.EventConnStatus, func(_ context.Context, _ domain.Event) {
		kept.Add(1)
	})
	unsub := bus.Subscribe(domain.EventConnStatus, func(_ context.Context, _ domain.Event) {
		removed.Add(1)
	})
	if bus.Len() != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", bus.Len())
	}

	unsub()
	unsub()
	if bus.Len() != 1 {
		t.Fatalf("expected 1 subscription after unsub, got %d", bus.Len())
	}

	bus.Publish(context.Background(), newEvent(domain.EventConnStatus, "ws://a"))
	bus.Close()

	if kept.Load() != 1 || removed.Load() != 0 {
		t.Fatalf("expected kept=1 removed=0, got kept=%d removed=%d", kept.Load(), removed.Load())
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventFrameReceived, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventFrameReceived, "ws://a"))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventMutationSent, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	bus.Subscribe(domain.EventMutationSent, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventMutationSent, "fuzz"))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected 1 (second handler), got %d", got.Load())
	}
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventRunCompleted, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventRunCompleted, "fuzz"))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected handler to have run, got %d", got.Load())
	}

	bus.Publish(context.Background(), newEvent(domain.EventRunCompleted, "fuzz"))
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 1 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
	bus.Close()
}
