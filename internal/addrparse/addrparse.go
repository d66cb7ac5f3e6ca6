// Package addrparse converts textual numeric addresses into their raw
// binary form. It never performs name resolution.
package addrparse

import (
	"fmt"
	"net"

	"github.com/dnscope/dnscope/internal/model"
)

// Parse parses a textual IPv4/IPv6 literal into its binary
// representation: four bytes for IPv4 and sixteen bytes for IPv6.
// Returns an error wrapping model.ErrInvalidAddressFormat when text is
// not a syntactically valid numeric address.
func Parse(text string) (net.IP, error) {
	ip := net.ParseIP(text)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAddressFormat, text)
	}
	if v4 := ip.To4(); v4 != nil {
		return v4, nil
	}
	return ip, nil
}

// AddrSet wraps a single binary address as a resolved address set.
func AddrSet(ip net.IP) model.AddrSet {
	return model.AddrSet{ip}
}
