package transport

import (
	"net/http"
	"net/url"
	"strings"

	"wsfuzz/internal/domain"
)

// reservedHeaders are managed by the WebSocket handshake itself and are never
// taken from caller-supplied headers.
var reservedHeaders = map[string]bool{
	"host":                  true,
	"upgrade":               true,
	"connection":            true,
	"sec-websocket-key":     true,
	"sec-websocket-version": true,
}

// ValidateURL checks that raw is a ws:// or wss:// URL with a host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return domain.NewDomainError("ValidateURL", domain.ErrInvalidURL, "empty url")
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.NewDomainError("ValidateURL", domain.ErrInvalidURL, err.Error())
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return domain.NewDomainError("ValidateURL", domain.ErrInvalidURL, "scheme must be ws or wss: "+raw)
	}
	if u.Hostname() == "" {
		return domain.NewDomainError("ValidateURL", domain.ErrInvalidURL, "missing host: "+raw)
	}
	return nil
}

// SanitizeHeaderValue strips CR and LF so a value cannot inject extra
// header lines into the handshake request.
func SanitizeHeaderValue(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// IsReservedHeader reports whether name is controlled by the handshake.
func IsReservedHeader(name string) bool {
	return reservedHeaders[strings.ToLower(strings.TrimSpace(name))]
}

// BuildHeader converts caller headers into a handshake header set, dropping
// reserved names and sanitizing names and values.
func BuildHeader(headers map[string]string) http.Header {
	h := make(http.Header, len(headers))
	for k, v := range headers {
		name := strings.TrimSpace(SanitizeHeaderValue(k))
		if name == "" || IsReservedHeader(name) {
			continue
		}
		h.Set(name, SanitizeHeaderValue(v))
	}
	return h
}
