//go:build unit

package ip

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		expected   string
	}{
		{name: "forwarded first entry wins", forwarded: "203.0.113.7, 10.0.0.1", remoteAddr: "10.0.0.2:5555", expected: "203.0.113.7"},
		{name: "forwarded single entry trimmed", forwarded: "  198.51.100.4 ", remoteAddr: "10.0.0.2:5555", expected: "198.51.100.4"},
		{name: "peer address without forwarded", remoteAddr: "192.0.2.10:40000", expected: "192.0.2.10"},
		{name: "ipv6 peer", remoteAddr: "[2001:db8::1]:443", expected: "2001:db8::1"},
		{name: "peer without port", remoteAddr: "192.0.2.11", expected: "192.0.2.11"},
		{name: "empty forwarded entry falls back to peer", forwarded: " , 10.0.0.1", remoteAddr: "192.0.2.12:1", expected: "192.0.2.12"},
		{name: "nothing available", expected: UnknownAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.forwarded != "" {
				h.Set(ForwardedForHeader, tt.forwarded)
			}
			require.Equal(t, tt.expected, ClientIP(h, tt.remoteAddr))
		})
	}
}

func TestFromRequestNil(t *testing.T) {
	require.Equal(t, UnknownAddress, FromRequest(nil))
}

func TestClientIPIgnoresRealIPHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Real-IP", "203.0.113.99")
	require.Equal(t, "192.0.2.20", ClientIP(h, "192.0.2.20:8080"))
}
