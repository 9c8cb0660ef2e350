// Package ip resolves the caller address recorded in usage logs.
package ip

import (
	"net"
	"net/http"
	"strings"
)

const (
	// ForwardedForHeader is trusted as set by the fronting proxy.
	ForwardedForHeader = "X-Forwarded-For"
	// UnknownAddress is recorded when neither source yields an address.
	UnknownAddress = "0.0.0.0"
)

// ClientIP returns the caller address with a fixed precedence:
//  1. the first entry of X-Forwarded-For,
//  2. the host part of the direct peer address,
//  3. UnknownAddress.
func ClientIP(header http.Header, remoteAddr string) string {
	if addr := firstForwarded(header); addr != "" {
		return addr
	}
	if addr := peerHost(remoteAddr); addr != "" {
		return addr
	}
	return UnknownAddress
}

// FromRequest is ClientIP applied to r.
func FromRequest(r *http.Request) string {
	if r == nil {
		return UnknownAddress
	}
	return ClientIP(r.Header, r.RemoteAddr)
}

func firstForwarded(header http.Header) string {
	if header == nil {
		return ""
	}
	raw := header.Get(ForwardedForHeader)
	if raw == "" {
		return ""
	}
	first, _, _ := strings.Cut(raw, ",")
	return strings.TrimSpace(first)
}

func peerHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// no port
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}
