package eventbus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"wsfuzz/internal/domain"
)

func benchBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// BenchmarkPublishFrame measures the per-frame cost on a busy capture.
func BenchmarkPublishFrame(b *testing.B) {
	bus := benchBus()
	ctx := context.Background()
	event := domain.NewEvent(domain.EventFrameReceived, "ws://bench", map[string]string{"text": `42["tick",{"n":1}]`})

	bus.Subscribe(domain.EventFrameReceived, func(_ context.Context, _ domain.Event) {})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bus.Publish(ctx, event)
	}
	bus.Close()
}

// BenchmarkPublishManySources has one source-scoped subscriber per session,
// of which only one matches.
func BenchmarkPublishManySources(b *testing.B) {
	bus := benchBus()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		bus.SubscribeSource(fmt.Sprintf("session-%d", i), func(_ context.Context, _ domain.Event) {})
	}
	event := domain.Event{Type: domain.EventFrameCaptured, Timestamp: time.Now(), Source: "session-7"}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bus.Publish(ctx, event)
	}
	bus.Close()
}

// BenchmarkPublishNoSubscribers measures the overhead of Publish itself.
func BenchmarkPublishNoSubscribers(b *testing.B) {
	bus := benchBus()
	ctx := context.Background()
	event := domain.Event{Type: domain.EventMutationSent, Timestamp: time.Now()}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bus.Publish(ctx, event)
	}
	bus.Close()
}

func BenchmarkPublishParallel(b *testing.B) {
	bus := benchBus()
	event := domain.Event{Type: domain.EventFrameReceived, Timestamp: time.Now()}
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {})

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			bus.Publish(ctx, event)
		}
	})
	bus.Close()
}
