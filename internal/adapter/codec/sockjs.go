package codec

import (
	"encoding/json"
	"strconv"
	"strings"

	"wsfuzz/internal/domain"
)

// sockJSCodec handles SockJS framing: single-letter open/heartbeat frames,
// c[code,"reason"] close frames and a[...] message arrays.
type sockJSCodec struct{}

func (sockJSCodec) Decode(raw string) domain.DecodedFrame {
	p := domain.ProtocolSockJS
	switch {
	case raw == "o":
		return domain.NewControlFrame(raw, p, "open")
	case raw == "h":
		return domain.NewControlFrame(raw, p, "heartbeat")
	case strings.HasPrefix(raw, "c["):
		return domain.NewControlFrame(raw, p, "close")
	case !strings.HasPrefix(raw, "a["):
		return domain.NewDecodedFrame(raw, p)
	}

	f := domain.NewDecodedFrame(raw, p)
	f.EventName = "message"
	inner := strings.TrimSuffix(raw[2:], "]")
	f.FuzzableBody = inner
	for i, elem := range splitElements(inner) {
		if elem == "" {
			continue
		}
		path := "[" + strconv.Itoa(i) + "]"
		if elem[0] != '"' {
			f.Fields.Set(path, elem)
			if looksStructured(elem) {
				ExtractInto(f.Fields, elem, path)
			}
			continue
		}
		text := unquoteElement(elem)
		f.Fields.Set(path, text)
		if looksStructured(text) {
			ExtractInto(f.Fields, text, path)
		}
	}
	return f
}

func (sockJSCodec) Encode(f domain.DecodedFrame, body string) string {
	if f.EventName != "message" {
		return body
	}
	return "a[" + body + "]"
}

// unquoteElement decodes a JSON string literal, falling back to the minimal
// quote/backslash unescape when the literal is not strictly valid.
func unquoteElement(elem string) string {
	var s string
	if err := json.Unmarshal([]byte(elem), &s); err == nil {
		return s
	}
	if len(elem) >= 2 && strings.HasSuffix(elem, `"`) {
		return unescapeQuoted(elem[1 : len(elem)-1])
	}
	return unescapeQuoted(strings.TrimPrefix(elem, `"`))
}
