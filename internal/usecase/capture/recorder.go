// Package capture classifies and records frames handed over by an
// interception host, and applies caller interception verdicts.
package capture

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/oklog/ulid/v2"

	"wsfuzz/internal/domain"
)

// DefaultHistoryLimit bounds the recorder history when no limit is given.
const DefaultHistoryLimit = 10_000

// Recorder issues frame IDs and keeps a bounded history of captured frames
// across all sessions.
type Recorder struct {
	mu      sync.Mutex
	seq     uint64
	history *queue.Queue
	limit   int
	logger  *slog.Logger
	bus     domain.EventBus
}

// NewRecorder creates a recorder keeping at most limit entries.
// bus may be nil.
func NewRecorder(limit int, logger *slog.Logger, bus domain.EventBus) *Recorder {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Recorder{
		history: queue.New(),
		limit:   limit,
		logger:  logger,
		bus:     bus,
	}
}

// Open starts a session for one intercepted connection.
func (r *Recorder) Open(endpoint string) *Session {
	s := &Session{
		ID:       newID(time.Now()),
		Endpoint: endpoint,
		rec:      r,
	}
	r.logger.Debug("capture session opened", "session", s.ID, "endpoint", endpoint)
	return s
}

func newID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// record assigns the next ID and appends entry, evicting the oldest entry
// once the limit is reached.
func (r *Recorder) record(entry domain.FrameEntry) domain.FrameEntry {
	r.mu.Lock()
	r.seq++
	entry.ID = r.seq
	r.history.Add(entry)
	for r.history.Length() > r.limit {
		r.history.Remove()
	}
	r.mu.Unlock()
	return entry
}

// History returns captured entries, oldest first.
func (r *Recorder) History() []domain.FrameEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.FrameEntry, r.history.Length())
	for i := range out {
		out[i] = r.history.Get(i).(domain.FrameEntry)
	}
	return out
}

// Len returns the number of retained entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Length()
}

// Clear drops the history. IDs keep increasing.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.history = queue.New()
	r.mu.Unlock()
}

func (r *Recorder) publish(ctx context.Context, source string, entry domain.FrameEntry) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, domain.NewEvent(domain.EventFrameCaptured, source, map[string]any{
		"id":        entry.ID,
		"direction": entry.Direction.String(),
		"endpoint":  entry.Endpoint,
		"protocol":  entry.Protocol.String(),
		"control":   entry.IsControl,
		"event":     entry.EventName,
		"length":    entry.Length,
	}))
}
