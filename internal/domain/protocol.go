package domain

import "strings"

// Protocol identifies the application-layer framing carried over a WebSocket.
type Protocol int

const (
	// ProtocolRaw is the unrecognized stream; no envelope semantics.
	ProtocolRaw Protocol = iota
	// ProtocolSocketIO is the Engine.IO/Socket.IO multiplexed envelope (42["event",...]).
	ProtocolSocketIO
	// ProtocolSignalR is record-separated JSON terminated by U+001E.
	ProtocolSignalR
	// ProtocolGraphQLWS is the JSON control-message protocol (connection_init, subscribe, ...).
	ProtocolGraphQLWS
	// ProtocolActionCable is the double-JSON-encoded envelope (identifier/data strings).
	ProtocolActionCable
	// ProtocolSTOMP is the line-based text protocol with headers.
	ProtocolSTOMP
	// ProtocolSockJS is the single-character control-frame protocol (o, h, a[...], c[...]).
	ProtocolSockJS
	// ProtocolJSON is plain JSON with no sub-protocol envelope.
	ProtocolJSON

	// ProtocolCount is the number of protocols; used to size dispatch tables.
	ProtocolCount
)

var protocolLabels = [ProtocolCount]string{
	ProtocolRaw:         "raw",
	ProtocolSocketIO:    "socket.io",
	ProtocolSignalR:     "signalr",
	ProtocolGraphQLWS:   "graphql-ws",
	ProtocolActionCable: "actioncable",
	ProtocolSTOMP:       "stomp",
	ProtocolSockJS:      "sockjs",
	ProtocolJSON:        "json",
}

// String returns the protocol label.
func (p Protocol) String() string {
	if p < 0 || p >= ProtocolCount {
		return "unknown"
	}
	return protocolLabels[p]
}

// Valid reports whether p is one of the defined protocols.
func (p Protocol) Valid() bool { return p >= 0 && p < ProtocolCount }

// Protocols returns every defined protocol in declaration order.
func Protocols() []Protocol {
	out := make([]Protocol, 0, ProtocolCount)
	for p := ProtocolRaw; p < ProtocolCount; p++ {
		out = append(out, p)
	}
	return out
}

// ParseProtocol resolves a label (case-insensitive) to a Protocol.
func ParseProtocol(label string) (Protocol, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	for p, name := range protocolLabels {
		if name == l {
			return Protocol(p), nil
		}
	}
	return ProtocolRaw, NewDomainError("ParseProtocol", ErrUnknownProtocol, label)
}

// Direction is the travel direction of a captured frame.
type Direction int

const (
	// DirectionToPeer is a frame sent by the requester to the peer.
	DirectionToPeer Direction = iota
	// DirectionFromPeer is a frame sent by the peer to the requester.
	DirectionFromPeer
)

func (d Direction) String() string {
	if d == DirectionToPeer {
		return "↑"
	}
	return "↓"
}
