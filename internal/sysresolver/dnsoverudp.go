package sysresolver

//
// DNS-over-UDP resolver
//

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dnscope/dnscope/internal/model"
	"github.com/miekg/dns"
)

// NewUDPResolver creates a Resolver that queries A and AAAA records
// over UDP against the DNS server at the given endpoint address
// (e.g., 8.8.8.8:53), wrapped by Wrap.
func NewUDPResolver(logger model.Logger, address string) model.Resolver {
	return Wrap(logger, &udpResolver{address: address})
}

// ErrWrongQueryID indicates we received a DNS reply whose query ID
// does not match the query's.
var ErrWrongQueryID = errors.New("sysresolver: reply with wrong query ID")

// ErrDNSServerMisbehaving indicates the DNS server returned an rcode
// we cannot map to a more specific condition.
var ErrDNSServerMisbehaving = errors.New("sysresolver: dns server misbehaving")

// udpResolver resolves hostnames with plain DNS over UDP.
type udpResolver struct {
	address string

	// testableDialContext allows tests to intercept dialing.
	testableDialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

var _ model.Resolver = &udpResolver{}

func (r *udpResolver) LookupHost(ctx context.Context, hostname string) ([]string, error) {
	addrs, errA := r.lookup(ctx, hostname, dns.TypeA)
	addrsAAAA, errAAAA := r.lookup(ctx, hostname, dns.TypeAAAA)
	addrs = append(addrs, addrsAAAA...)
	if len(addrs) <= 0 {
		if errA != nil {
			return nil, errA
		}
		return nil, errAAAA
	}
	return addrs, nil
}

func (r *udpResolver) lookup(ctx context.Context, hostname string, qtype uint16) ([]string, error) {
	// SetQuestion also assigns a fresh query ID and sets the
	// recursion-desired bit.
	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(hostname), qtype)
	rawQuery, err := query.Pack()
	if err != nil {
		return nil, err
	}
	rawReply, err := r.roundTrip(ctx, rawQuery)
	if err != nil {
		return nil, err
	}
	return decodeLookupHostReply(qtype, rawReply, query.Id)
}

func (r *udpResolver) roundTrip(ctx context.Context, rawQuery []byte) ([]byte, error) {
	conn, err := r.dialContext()(ctx, "udp", r.address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	// Use five seconds timeout like Bionic does. See
	// https://labs.ripe.net/Members/baptiste_jonglez_1/persistent-dns-connections-for-reliability-and-performance
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(rawQuery); err != nil {
		return nil, err
	}
	rawReply := make([]byte, 1<<17)
	count, err := conn.Read(rawReply)
	if err != nil {
		return nil, err
	}
	return rawReply[:count], nil
}

func (r *udpResolver) dialContext() func(ctx context.Context, network, address string) (net.Conn, error) {
	if r.testableDialContext != nil {
		return r.testableDialContext
	}
	dialer := &net.Dialer{}
	return dialer.DialContext
}

func (r *udpResolver) Network() string {
	return "udp"
}

func (r *udpResolver) Address() string {
	return r.address
}

// decodeLookupHostReply parses a raw DNS reply and extracts the
// addresses answering a query of the given type and ID.
func decodeLookupHostReply(qtype uint16, rawReply []byte, queryID uint16) ([]string, error) {
	reply := new(dns.Msg)
	if err := reply.Unpack(rawReply); err != nil {
		return nil, err
	}
	if reply.Id != queryID {
		return nil, ErrWrongQueryID
	}
	switch reply.Rcode {
	case dns.RcodeSuccess:
		// fallthrough to parsing the answers
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: NXDOMAIN", model.ErrUnknownHost)
	default:
		return nil, fmt.Errorf("%w: rcode %d", ErrDNSServerMisbehaving, reply.Rcode)
	}
	var addrs []string
	for _, answer := range reply.Answer {
		switch qtype {
		case dns.TypeA:
			if rra, ok := answer.(*dns.A); ok {
				addrs = append(addrs, rra.A.String())
			}
		case dns.TypeAAAA:
			if rra, ok := answer.(*dns.AAAA); ok {
				addrs = append(addrs, rra.AAAA.String())
			}
		}
	}
	if len(addrs) <= 0 {
		return nil, fmt.Errorf("%w: no answer", model.ErrUnknownHost)
	}
	return addrs, nil
}
