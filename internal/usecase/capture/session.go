package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wsfuzz/internal/adapter/codec"
	"wsfuzz/internal/domain"
)

// Action is what the host should do with an intercepted frame.
type Action int

const (
	ActionForward Action = iota
	ActionReplace
	ActionDrop
)

func (a Action) String() string {
	switch a {
	case ActionReplace:
		return "replace"
	case ActionDrop:
		return "drop"
	default:
		return "forward"
	}
}

// Verdict is the decision returned for one intercepted frame.
type Verdict struct {
	Action Action
	Text   string // replacement text, set for ActionReplace
}

// Forward passes the frame through unchanged.
func Forward() Verdict { return Verdict{Action: ActionForward} }

// Replace passes text through instead of the captured frame.
func Replace(text string) Verdict { return Verdict{Action: ActionReplace, Text: text} }

// Drop discards the frame.
func Drop() Verdict { return Verdict{Action: ActionDrop} }

// Interceptor decides the fate of a non-control frame.
type Interceptor func(ctx context.Context, entry domain.FrameEntry) Verdict

// Session tracks one intercepted connection. Its protocol is detected from
// the first codec.DetectWindow text frames and fixed afterwards.
type Session struct {
	ID       string
	Endpoint string

	rec      *Recorder
	mu       sync.Mutex
	samples  []string
	protocol domain.Protocol
	pinned   bool
}

// SetProtocol fixes the session protocol and disables detection.
func (s *Session) SetProtocol(p domain.Protocol) {
	s.mu.Lock()
	s.protocol = p
	s.pinned = true
	s.mu.Unlock()
}

// Protocol returns the protocol detected so far.
func (s *Session) Protocol() domain.Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocol
}

func (s *Session) observe(text string) domain.Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pinned && len(s.samples) < codec.DetectWindow {
		s.samples = append(s.samples, text)
		s.protocol = codec.Detect(s.samples)
	}
	return s.protocol
}

// Handle records a captured text frame and applies ic to it. Control frames
// and a nil interceptor always yield Forward.
func (s *Session) Handle(ctx context.Context, dir domain.Direction, text string, ic Interceptor) (domain.FrameEntry, Verdict) {
	proto := s.observe(text)
	frame := codec.Decode(text, proto)

	entry := s.rec.record(domain.FrameEntry{
		Direction:  dir,
		Raw:        text,
		Endpoint:   s.Endpoint,
		Protocol:   proto,
		IsControl:  frame.IsControl,
		EventName:  frame.EventName,
		CapturedAt: time.Now(),
		Length:     len(text),
		Decoded:    &frame,
	})
	s.rec.publish(ctx, s.ID, entry)

	if frame.IsControl || ic == nil {
		return entry, Forward()
	}
	v := ic(domain.ContextWithSessionID(ctx, s.ID), entry)
	switch {
	case v.Action == ActionReplace && v.Text == text:
		v = Forward()
	case v.Action != ActionReplace && v.Action != ActionDrop:
		v = Forward()
	}
	if v.Action != ActionForward {
		s.rec.logger.Debug("frame intercepted", "session", s.ID, "id", entry.ID, "action", v.Action.String())
	}
	return entry, v
}

// HandleBinary records a binary frame of n bytes. Binary frames are never
// decoded or intercepted.
func (s *Session) HandleBinary(ctx context.Context, dir domain.Direction, n int) domain.FrameEntry {
	text := fmt.Sprintf("[binary: %d bytes]", n)
	frame := domain.NewDecodedFrame(text, domain.ProtocolRaw)
	frame.EventName = "binary"

	entry := s.rec.record(domain.FrameEntry{
		Direction:  dir,
		Raw:        text,
		Endpoint:   s.Endpoint,
		Protocol:   domain.ProtocolRaw,
		EventName:  "binary",
		CapturedAt: time.Now(),
		Length:     n,
		Decoded:    &frame,
	})
	s.rec.publish(ctx, s.ID, entry)
	return entry
}
