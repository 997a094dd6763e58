package domain

import (
	"fmt"
	"time"
)

// DecodedFrame is the protocol-neutral view of one text frame.
type DecodedFrame struct {
	Raw       string   // original frame text, never modified
	Protocol  Protocol // protocol the frame was decoded as
	IsControl bool     // ping/pong/handshake/ack machinery rather than application data
	EventName string   // logical target/command/type, empty if the protocol has none

	// Socket.IO envelope.
	EngineType string // outer Engine.IO packet type digit
	PacketType string // inner Socket.IO packet type digit
	Namespace  string // "/" when absent
	AckID      string

	// SignalR message kind.
	SignalRType     int
	SignalRTypeName string

	// ActionCable double-encoded payloads.
	InnerData       string
	HasInner        bool
	InnerIdentifier string

	// GraphQL-WS operation id.
	CorrelationID string

	FuzzableBody string  // sub-payload that is safe to mutate
	Fields       *Fields // structural path -> leaf value
}

// NewDecodedFrame returns a minimal frame carrying only raw and protocol.
func NewDecodedFrame(raw string, p Protocol) DecodedFrame {
	return DecodedFrame{Raw: raw, Protocol: p, FuzzableBody: raw, Fields: NewFields()}
}

// NewControlFrame returns a control frame with the given event name.
func NewControlFrame(raw string, p Protocol, event string) DecodedFrame {
	f := NewDecodedFrame(raw, p)
	f.IsControl = true
	f.EventName = event
	return f
}

// FrameEntry is one captured frame as exposed to callers.
type FrameEntry struct {
	ID         uint64
	Direction  Direction
	Raw        string
	Endpoint   string
	Protocol   Protocol
	IsControl  bool
	EventName  string
	CapturedAt time.Time
	Length     int
	Decoded    *DecodedFrame // shared, read-only
}

func (e FrameEntry) String() string {
	return fmt.Sprintf("[%s] %s %s %s (%d bytes)",
		e.CapturedAt.Format("15:04:05.000"), e.Direction, e.Protocol, e.EventName, e.Length)
}
