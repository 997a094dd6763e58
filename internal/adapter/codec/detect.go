package codec

import (
	"strings"

	"wsfuzz/internal/domain"
)

// MaxSampleLength is the largest sample Detect will inspect. Longer samples
// are skipped entirely.
const MaxSampleLength = 1_000_000

// DetectWindow is how many leading frames of a stream are worth classifying.
const DetectWindow = 5

var stompVerbs = []string{"CONNECT", "CONNECTED", "SEND", "SUBSCRIBE", "MESSAGE", "STOMP"}

// Detect decides which sub-protocol governs a stream from its leading frames.
// Rules are tried per sample in priority order and the first sample matching
// any rule wins. Protocol-unique markers (record separator, explicit type
// fields) are checked before the bracket-prefix fallback.
func Detect(samples []string) domain.Protocol {
	if len(samples) == 0 {
		return domain.ProtocolRaw
	}
	for _, s := range samples {
		if len(s) > MaxSampleLength {
			continue
		}
		if p, ok := classify(s); ok {
			return p
		}
	}
	first := samples[0]
	if len(first) > MaxSampleLength {
		return domain.ProtocolRaw
	}
	if looksStructured(first) {
		return domain.ProtocolJSON
	}
	return domain.ProtocolRaw
}

func classify(s string) (domain.Protocol, bool) {
	switch {
	case strings.HasPrefix(s, "0{") && strings.Contains(s, `"sid"`):
		return domain.ProtocolSocketIO, true
	case len(s) >= 2 && s[0] == '4' && s[1] >= '0' && s[1] <= '6':
		return domain.ProtocolSocketIO, true
	case strings.HasSuffix(s, recordSeparator):
		return domain.ProtocolSignalR, true
	case strings.Contains(s, `"type":"welcome"`), strings.Contains(s, `"type": "welcome"`):
		return domain.ProtocolActionCable, true
	case strings.Contains(s, `"type":"connection_init"`),
		strings.Contains(s, `"type":"start"`),
		strings.Contains(s, `"type":"subscribe"`):
		return domain.ProtocolGraphQLWS, true
	case hasAnyPrefix(s, stompVerbs):
		return domain.ProtocolSTOMP, true
	case s == "o", s == "h", strings.HasPrefix(s, "a["), strings.HasPrefix(s, "c["):
		return domain.ProtocolSockJS, true
	}
	return domain.ProtocolRaw, false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func looksStructured(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")
}
