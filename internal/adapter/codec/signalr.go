package codec

import (
	"regexp"
	"strconv"
	"strings"

	"wsfuzz/internal/domain"
)

// recordSeparator terminates every SignalR JSON hub message.
const recordSeparator = "\x1e"

var (
	signalRTarget = regexp.MustCompile(`"target"\s*:\s*"([^"]+)"`)
	signalRType   = regexp.MustCompile(`"type"\s*:\s*(\d+)`)
)

var signalRTypeNames = map[int]string{
	1: "Invocation",
	2: "StreamItem",
	3: "Completion",
	4: "StreamInvocation",
	5: "CancelInvocation",
	6: "Ping",
	7: "Close",
}

type signalRCodec struct{}

func (signalRCodec) Decode(raw string) domain.DecodedFrame {
	p := domain.ProtocolSignalR
	clean := strings.TrimSuffix(raw, recordSeparator)

	switch {
	case strings.Contains(clean, `"type":6`), strings.Contains(clean, `"type": 6`):
		f := domain.NewControlFrame(raw, p, "ping")
		f.SignalRType, f.SignalRTypeName = 6, signalRTypeNames[6]
		return f
	case strings.Contains(clean, `"type":7`), strings.Contains(clean, `"type": 7`):
		f := domain.NewControlFrame(raw, p, "close")
		f.SignalRType, f.SignalRTypeName = 7, signalRTypeNames[7]
		return f
	}

	f := domain.NewDecodedFrame(raw, p)
	f.FuzzableBody = clean
	if m := signalRTarget.FindStringSubmatch(clean); m != nil {
		f.EventName = m[1]
	}
	if m := signalRType.FindStringSubmatch(clean); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.SignalRType = n
			f.SignalRTypeName = signalRTypeNames[n]
		}
	}
	f.Fields = Extract(clean)
	return f
}

// Encode guarantees exactly one trailing record separator.
func (signalRCodec) Encode(_ domain.DecodedFrame, body string) string {
	return strings.TrimRight(body, recordSeparator) + recordSeparator
}
