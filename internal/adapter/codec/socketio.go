package codec

import (
	"regexp"
	"strings"

	"wsfuzz/internal/domain"
)

var socketIOEvent = regexp.MustCompile(`(?s)^(\d)(\d)(/[^,]*)?,?(\d+)?\["([^"]+)"(?:,(.*))?\]$`)

// socketIOCodec handles Engine.IO/Socket.IO v4 framing: a packet type digit,
// a Socket.IO type digit, an optional namespace and ack id, then a JSON
// array whose first element is the event name.
type socketIOCodec struct{}

func (socketIOCodec) Decode(raw string) domain.DecodedFrame {
	p := domain.ProtocolSocketIO
	switch {
	case raw == "2":
		return domain.NewControlFrame(raw, p, "ping")
	case raw == "3":
		return domain.NewControlFrame(raw, p, "pong")
	case raw == "1":
		return domain.NewControlFrame(raw, p, "close")
	case strings.HasPrefix(raw, "0{"):
		return domain.NewControlFrame(raw, p, "open")
	case raw == "40", strings.HasPrefix(raw, "40{"), strings.HasPrefix(raw, "40/"):
		return domain.NewControlFrame(raw, p, "connect")
	}

	m := socketIOEvent.FindStringSubmatchIndex(raw)
	if m == nil {
		f := domain.NewDecodedFrame(raw, p)
		if strings.HasPrefix(raw, "43") {
			f.EventName = "ack"
		}
		return f
	}

	f := domain.NewDecodedFrame(raw, p)
	f.EngineType = group(raw, m, 1)
	f.PacketType = group(raw, m, 2)
	f.Namespace = "/"
	if ns := group(raw, m, 3); ns != "" {
		f.Namespace = ns
	}
	f.AckID = group(raw, m, 4)
	f.EventName = group(raw, m, 5)
	f.FuzzableBody = ""
	if m[12] >= 0 {
		f.FuzzableBody = raw[m[12]:m[13]]
		f.Fields = Extract(f.FuzzableBody)
	}
	return f
}

func (socketIOCodec) Encode(f domain.DecodedFrame, body string) string {
	if f.EventName == "" || f.IsControl {
		return f.Raw
	}
	var b strings.Builder
	b.Grow(len(body) + len(f.EventName) + 16)
	b.WriteString(orDefault(f.EngineType, "4"))
	b.WriteString(orDefault(f.PacketType, "2"))
	if f.Namespace != "" && f.Namespace != "/" {
		b.WriteString(f.Namespace)
		b.WriteByte(',')
	}
	b.WriteString(f.AckID)
	b.WriteString(`["`)
	b.WriteString(f.EventName)
	b.WriteByte('"')
	if body != "" {
		b.WriteByte(',')
		b.WriteString(body)
	}
	b.WriteByte(']')
	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
