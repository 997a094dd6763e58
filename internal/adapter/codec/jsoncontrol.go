package codec

import (
	"regexp"

	"wsfuzz/internal/domain"
)

var (
	typeField       = regexp.MustCompile(`"type"\s*:\s*"([^"]+)"`)
	idField         = regexp.MustCompile(`"id"\s*:\s*"([^"]+)"`)
	commandField    = regexp.MustCompile(`"command"\s*:\s*"([^"]+)"`)
	dataField       = regexp.MustCompile(`"data"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	identifierField = regexp.MustCompile(`"identifier"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

var graphQLControl = map[string]bool{
	"connection_init":       true,
	"connection_ack":        true,
	"ka":                    true,
	"connection_keep_alive": true,
	"ping":                  true,
	"pong":                  true,
}

var actionCableControl = map[string]bool{
	"welcome":              true,
	"ping":                 true,
	"confirm_subscription": true,
}

// graphQLCodec covers both graphql-ws and graphql-transport-ws: every frame
// is a JSON object whose "type" names the message.
type graphQLCodec struct{}

func (graphQLCodec) Decode(raw string) domain.DecodedFrame {
	f := domain.NewDecodedFrame(raw, domain.ProtocolGraphQLWS)
	if m := typeField.FindStringSubmatch(raw); m != nil {
		f.EventName = m[1]
		f.IsControl = graphQLControl[m[1]]
	}
	if m := idField.FindStringSubmatch(raw); m != nil {
		f.CorrelationID = m[1]
	}
	if !f.IsControl {
		f.Fields = Extract(raw)
	}
	return f
}

func (graphQLCodec) Encode(_ domain.DecodedFrame, body string) string {
	return body
}

// actionCableCodec handles Rails ActionCable, whose "data" and "identifier"
// members carry JSON documents encoded as JSON strings.
type actionCableCodec struct{}

func (actionCableCodec) Decode(raw string) domain.DecodedFrame {
	p := domain.ProtocolActionCable
	if m := typeField.FindStringSubmatch(raw); m != nil && actionCableControl[m[1]] {
		return domain.NewControlFrame(raw, p, m[1])
	}

	f := domain.NewDecodedFrame(raw, p)
	if m := commandField.FindStringSubmatch(raw); m != nil {
		f.EventName = m[1]
	}
	if m := identifierField.FindStringSubmatch(raw); m != nil {
		f.InnerIdentifier = unescapeQuoted(m[1])
	}
	if m := dataField.FindStringSubmatch(raw); m != nil {
		f.InnerData = unescapeQuoted(m[1])
		f.HasInner = true
		f.FuzzableBody = f.InnerData
		f.Fields = Extract(f.InnerData)
		return f
	}
	f.Fields = Extract(raw)
	return f
}

// Encode escapes body and splices it into the first "data" member, leaving
// every other byte of the original frame untouched.
func (actionCableCodec) Encode(f domain.DecodedFrame, body string) string {
	if !f.HasInner {
		return f.Raw
	}
	m := dataField.FindStringSubmatchIndex(f.Raw)
	if m == nil {
		return f.Raw
	}
	return f.Raw[:m[2]] + escapeQuoted(body) + f.Raw[m[3]:]
}
