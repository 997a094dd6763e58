package codec

import (
	"strings"

	"wsfuzz/internal/domain"
)

// BodyFieldPrefix marks fields derived from a STOMP body rather than from a
// header. Encode skips them when rebuilding the header block.
const BodyFieldPrefix = "_body_."

var stompControl = map[string]bool{
	"CONNECTED": true,
	"HEARTBEAT": true,
	"RECEIPT":   true,
	"ERROR":     true,
}

type stompCodec struct{}

func (stompCodec) Decode(raw string) domain.DecodedFrame {
	f := domain.NewDecodedFrame(raw, domain.ProtocolSTOMP)
	lines := strings.Split(raw, "\n")
	f.EventName = strings.TrimSpace(lines[0])
	f.IsControl = stompControl[f.EventName]

	var body []string
	inHeaders := true
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if inHeaders {
			if line == "" {
				inHeaders = false
				continue
			}
			if i := strings.IndexByte(line, ':'); i > 0 {
				f.Fields.Set(line[:i], line[i+1:])
			}
			continue
		}
		body = append(body, line)
	}

	text := strings.Join(body, "\n")
	// only the frame terminator goes; NULs inside the body stay
	if i := strings.LastIndexByte(text, 0); i >= 0 && strings.TrimRight(text[i+1:], "\r\n") == "" {
		text = text[:i]
	}
	f.FuzzableBody = text
	if looksStructured(text) {
		ExtractInto(f.Fields, text, strings.TrimSuffix(BodyFieldPrefix, "."))
	}
	return f
}

func (stompCodec) Encode(f domain.DecodedFrame, body string) string {
	var b strings.Builder
	b.WriteString(f.EventName)
	b.WriteByte('\n')
	f.Fields.Range(func(k, v string) bool {
		if !strings.HasPrefix(k, BodyFieldPrefix) {
			b.WriteString(k)
			b.WriteByte(':')
			b.WriteString(v)
			b.WriteByte('\n')
		}
		return true
	})
	b.WriteByte('\n')
	b.WriteString(body)
	b.WriteByte(0)
	return b.String()
}
