// Package netx contains small networking helpers shared by the HTTP boundary
// and the domain service.
package netx

import (
	"net"
	"strings"
)

// RemoteIP extracts the bare IP address from a network remote address, which
// may or may not carry a port ("10.0.0.5:40312" or "10.0.0.5"). Returns an
// empty string if addr does not parse as an IP at all.
func RemoteIP(addr string) string {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}

// ValidIP reports whether s parses as an IPv4 or IPv6 address.
func ValidIP(s string) bool {
	return net.ParseIP(s) != nil
}
