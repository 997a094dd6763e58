package codec

import (
	"strings"

	"wsfuzz/internal/domain"
)

var keepaliveTokens = map[string]bool{
	"PING": true, "PONG": true, "HEARTBEAT": true, "HB": true,
	"KEEPALIVE": true, "KA": true, "2": true, "3": true, "{}": true, "[]": true,
}

var keepalivePrefixes = []string{
	`{"TYPE":"PING"`, `{"TYPE":"PONG"`, `{"TYPE": "PING"`, `{"TYPE": "PONG"`,
}

// genericCodec serves both plain JSON streams and unrecognised traffic.
type genericCodec struct{}

func (genericCodec) Decode(raw string) domain.DecodedFrame {
	f := domain.NewDecodedFrame(raw, domain.ProtocolRaw)
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)
	if keepaliveTokens[upper] || hasAnyPrefix(upper, keepalivePrefixes) {
		f.IsControl = true
		f.EventName = keepaliveName(upper)
		return f
	}
	if looksStructured(trimmed) {
		f.Fields = Extract(trimmed)
	}
	return f
}

func (genericCodec) Encode(_ domain.DecodedFrame, body string) string {
	return body
}

func keepaliveName(upper string) string {
	switch {
	case strings.Contains(upper, "PING"):
		return "PING"
	case strings.Contains(upper, "PONG"):
		return "PONG"
	case upper == "2":
		return "ping"
	case upper == "3":
		return "pong"
	}
	return "keepalive"
}
