// Package sysresolver implements the real resolvers that back the
// shared resolution cache on a full overlay miss, along with the
// decorators we compose around them.
package sysresolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dnscope/dnscope/internal/model"
)

// NewSystemResolver creates a Resolver using the system resolution
// mechanism (i.e., net.DefaultResolver) wrapped by Wrap.
func NewSystemResolver(logger model.Logger) model.Resolver {
	return Wrap(logger, &systemResolver{})
}

// Wrap decorates an existing resolver so that (1) every lookup is
// logged at debug level with its duration and (2) failures are
// classified, with "no such host" conditions mapped to
// model.ErrUnknownHost.
func Wrap(logger model.Logger, resolver model.Resolver) model.Resolver {
	return &resolverLogger{
		Resolver: &resolverErrClassifier{
			Resolver: resolver,
		},
		Logger: logger,
	}
}

// systemResolver is the system resolver.
type systemResolver struct {
	testableTimeout    time.Duration
	testableLookupHost func(ctx context.Context, domain string) ([]string, error)
}

var _ model.Resolver = &systemResolver{}

func (r *systemResolver) LookupHost(ctx context.Context, hostname string) ([]string, error) {
	// Bound system resolutions with a shorter timeout: platform
	// defaults have been observed to be way too large.
	addrsch, errch := make(chan []string, 1), make(chan error, 1)
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()
	go func() {
		addrs, err := r.lookupHost()(ctx, hostname)
		if err != nil {
			errch <- err
			return
		}
		addrsch <- addrs
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case addrs := <-addrsch:
		return addrs, nil
	case err := <-errch:
		return nil, err
	}
}

func (r *systemResolver) timeout() time.Duration {
	if r.testableTimeout > 0 {
		return r.testableTimeout
	}
	return 15 * time.Second
}

func (r *systemResolver) lookupHost() func(ctx context.Context, domain string) ([]string, error) {
	if r.testableLookupHost != nil {
		return r.testableLookupHost
	}
	return net.DefaultResolver.LookupHost
}

func (r *systemResolver) Network() string {
	return "system"
}

func (r *systemResolver) Address() string {
	return ""
}

// resolverLogger is a resolver that emits events.
type resolverLogger struct {
	Resolver model.Resolver
	Logger   model.Logger
}

var _ model.Resolver = &resolverLogger{}

func (r *resolverLogger) LookupHost(ctx context.Context, hostname string) ([]string, error) {
	prefix := fmt.Sprintf("resolve %s with %s (%s)", hostname, r.Network(), r.Address())
	r.Logger.Debugf("%s...", prefix)
	start := time.Now()
	addrs, err := r.Resolver.LookupHost(ctx, hostname)
	elapsed := time.Since(start)
	if err != nil {
		r.Logger.Debugf("%s... %s in %s", prefix, err, elapsed)
		return nil, err
	}
	r.Logger.Debugf("%s... %+v in %s", prefix, addrs, elapsed)
	return addrs, nil
}

func (r *resolverLogger) Network() string {
	return r.Resolver.Network()
}

func (r *resolverLogger) Address() string {
	return r.Resolver.Address()
}

// dnsNoSuchHostSuffix is the suffix of the error returned by the Go
// resolver when a hostname does not exist.
const dnsNoSuchHostSuffix = "no such host"

// resolverErrClassifier maps resolution failures onto the overlay's
// error taxonomy.
type resolverErrClassifier struct {
	Resolver model.Resolver
}

var _ model.Resolver = &resolverErrClassifier{}

func (r *resolverErrClassifier) LookupHost(ctx context.Context, hostname string) ([]string, error) {
	addrs, err := r.Resolver.LookupHost(ctx, hostname)
	if err != nil {
		return nil, classifyResolverError(err)
	}
	return addrs, nil
}

func (r *resolverErrClassifier) Network() string {
	return r.Resolver.Network()
}

func (r *resolverErrClassifier) Address() string {
	return r.Resolver.Address()
}

// classifyResolverError maps "host not found" conditions onto
// model.ErrUnknownHost and leaves any other error untouched.
func classifyResolverError(err error) error {
	if errors.Is(err, model.ErrUnknownHost) {
		return err
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return fmt.Errorf("%w: %s", model.ErrUnknownHost, err.Error())
	}
	if strings.HasSuffix(err.Error(), dnsNoSuchHostSuffix) {
		return fmt.Errorf("%w: %s", model.ErrUnknownHost, err.Error())
	}
	return err
}
