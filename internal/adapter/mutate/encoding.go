package mutate

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf16"

	"wsfuzz/internal/domain"
)

// Encoding transforms a payload before it is substituted into a template.
type Encoding string

const (
	EncodingNone      Encoding = "none"
	EncodingURL       Encoding = "url"
	EncodingBase64    Encoding = "base64"
	EncodingDoubleURL Encoding = "double-url"
	EncodingUnicode   Encoding = "unicode"
)

// Encodings lists the supported encodings.
func Encodings() []Encoding {
	return []Encoding{EncodingNone, EncodingURL, EncodingBase64, EncodingDoubleURL, EncodingUnicode}
}

// ParseEncoding accepts an encoding name, case-insensitively. The empty
// string means EncodingNone.
func ParseEncoding(s string) (Encoding, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return EncodingNone, nil
	}
	for _, e := range Encodings() {
		if string(e) == name {
			return e, nil
		}
	}
	return EncodingNone, domain.NewDomainError("ParseEncoding", domain.ErrUnknownEncoding, s)
}

// Apply encodes payload. Unknown encodings leave it unchanged.
func (e Encoding) Apply(payload string) string {
	switch e {
	case EncodingURL:
		return url.QueryEscape(payload)
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString([]byte(payload))
	case EncodingDoubleURL:
		return url.QueryEscape(url.QueryEscape(payload))
	case EncodingUnicode:
		var b strings.Builder
		for _, u := range utf16.Encode([]rune(payload)) {
			fmt.Fprintf(&b, `\u%04x`, u)
		}
		return b.String()
	default:
		return payload
	}
}
