package transport

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultMaxIdleConns = 10
	handshakeTimeout    = 10 * time.Second
)

// NewHTTPClient returns the client used for WebSocket handshakes. Probes
// open many short-lived connections to one host, so idle connections are
// pooled. The client carries no overall Timeout: the websocket dialer
// rejects one and bounds the handshake through its context instead.
func NewHTTPClient(connectTimeout time.Duration, maxIdle int) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultOptions().ConnectTimeout
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   handshakeTimeout,
			ResponseHeaderTimeout: connectTimeout,
			MaxIdleConns:          maxIdle,
			MaxIdleConnsPerHost:   maxIdle,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
