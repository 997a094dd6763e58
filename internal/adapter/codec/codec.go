// Package codec classifies WebSocket text streams into sub-protocols and
// translates individual frames to and from the protocol-neutral
// domain.DecodedFrame.
package codec

import (
	"wsfuzz/internal/domain"
)

// Codec decodes and re-encodes frames of a single sub-protocol.
//
// Decode must never fail: unrecognised input degrades to a minimal frame
// carrying only the raw text. Encode splices a (possibly mutated) body back
// into the envelope described by a frame previously returned by Decode.
type Codec interface {
	Decode(raw string) domain.DecodedFrame
	Encode(frame domain.DecodedFrame, body string) string
}

// codecs is indexed by domain.Protocol. Adding a protocol without a codec
// leaves a nil slot, which For reports as the raw fallback.
var codecs = [domain.ProtocolCount]Codec{
	domain.ProtocolRaw:         genericCodec{},
	domain.ProtocolSocketIO:    socketIOCodec{},
	domain.ProtocolSignalR:     signalRCodec{},
	domain.ProtocolGraphQLWS:   graphQLCodec{},
	domain.ProtocolActionCable: actionCableCodec{},
	domain.ProtocolSTOMP:       stompCodec{},
	domain.ProtocolSockJS:      sockJSCodec{},
	domain.ProtocolJSON:        genericCodec{},
}

// For returns the codec registered for p, falling back to the generic codec.
func For(p domain.Protocol) Codec {
	if p.Valid() && codecs[p] != nil {
		return codecs[p]
	}
	return genericCodec{}
}

// Decode decodes raw as protocol p. The result is always tagged with p.
func Decode(raw string, p domain.Protocol) (frame domain.DecodedFrame) {
	defer func() {
		if r := recover(); r != nil {
			frame = domain.NewDecodedFrame(raw, p)
		}
	}()
	frame = For(p).Decode(raw)
	frame.Protocol = p
	if frame.Fields == nil {
		frame.Fields = domain.NewFields()
	}
	return frame
}

// Encode re-encodes frame with body substituted for its fuzzable part.
func Encode(frame domain.DecodedFrame, body string) string {
	return For(frame.Protocol).Encode(frame, body)
}

// DecodeStream classifies the stream from its first DetectWindow frames and
// decodes every frame with the detected protocol.
func DecodeStream(frames []string) (domain.Protocol, []domain.DecodedFrame) {
	window := frames
	if len(window) > DetectWindow {
		window = window[:DetectWindow]
	}
	p := Detect(window)
	out := make([]domain.DecodedFrame, 0, len(frames))
	for _, f := range frames {
		out = append(out, Decode(f, p))
	}
	return p, out
}

// group returns submatch i of a FindStringSubmatchIndex result, or "" when
// the group did not participate.
func group(s string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}
