// Package model contains the shared interfaces and types used by the
// rest of the hostname-resolution overlay.
package model

import (
	"context"
	"net"
)

// AddrSet is an ordered, non-empty sequence of binary network
// addresses associated with a hostname. Each element is the raw
// byte representation of an address: four bytes for IPv4 and
// sixteen bytes for IPv6.
type AddrSet []net.IP

// Resolver resolves hostnames to textual IP addresses. This is the
// interface implemented by the real resolver that backs the shared
// cache on a full overlay miss.
type Resolver interface {
	// LookupHost behaves like net.Resolver.LookupHost.
	LookupHost(ctx context.Context, hostname string) (addrs []string, err error)

	// Network returns the resolver type (e.g., system, udp).
	Network() string

	// Address returns the resolver endpoint (e.g., 8.8.8.8:53) or an
	// empty string when there is no meaningful endpoint.
	Address() string
}
