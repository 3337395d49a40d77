// Package httpclient builds the shared outbound HTTP client.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// New returns a client with the given read and connect timeouts. Zero or
// negative values fall back to 15s read / 5s connect.
func New(timeout, connectTimeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	var dialer = &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: connectTimeout,
			ForceAttemptHTTP2:   true,
		},
	}
}
