// Package dnscope implements a layered, scoped hostname-resolution
// overlay. A lookup walks an ordered fallback chain: the overrides of
// the calling execution context's scope, then the process-wide static
// override table, then a shared resolution cache backed by a real
// resolver. Results are cached forever at each layer, failures never
// are, and concurrent lookups of the same hostname collapse into a
// single computation.
//
// The unit of scoping is the context.Context: WithScope derives a
// context owning a fresh scope, and every context derived from it
// shares that scope instance, so a child goroutine handed a child
// context observes its parent's overrides, including those set after
// the child context was derived. WithScopeSnapshot provides the
// alternative point-in-time-copy semantics.
package dnscope

import (
	"context"
	"fmt"
	"strings"

	"github.com/dnscope/dnscope/internal/addrparse"
	"github.com/dnscope/dnscope/internal/model"
	"github.com/dnscope/dnscope/internal/resolvecache"
	"github.com/dnscope/dnscope/internal/runtimex"
	"github.com/dnscope/dnscope/internal/scopes"
	"github.com/dnscope/dnscope/internal/statictable"
	"github.com/dnscope/dnscope/internal/sysresolver"
	"golang.org/x/net/idna"
)

// AddrSet is an ordered, non-empty sequence of binary addresses: four
// bytes for IPv4 and sixteen bytes for IPv6 entries.
type AddrSet = model.AddrSet

// Resolver is the real resolver backing the shared cache.
type Resolver = model.Resolver

// Logger is the logging interface used by this package. It is out of
// the box compatible with `log.Log` in `apex/log`.
type Logger = model.Logger

// Scope bundles the overrides and the cached resolutions private to
// one context lineage.
type Scope = scopes.Scope

// WithScope derives a context owning a fresh empty scope. All
// contexts derived from the returned one share the scope instance.
func WithScope(ctx context.Context) context.Context {
	return scopes.NewContext(ctx, scopes.New())
}

// WithScopeSnapshot derives a context owning a new scope initialized
// with a point-in-time copy of the current scope's overrides. Unlike
// WithScope lineage sharing, later mutations on either side are not
// visible to the other. With no scope on ctx this is WithScope.
func WithScopeSnapshot(ctx context.Context) context.Context {
	parent, found := scopes.FromContext(ctx)
	if !found {
		return WithScope(ctx)
	}
	return scopes.NewContext(ctx, scopes.Snapshot(parent))
}

// ScopeFromContext returns the scope carried by ctx, if any.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	return scopes.FromContext(ctx)
}

// Service is the resolution facade. Construct with NewService. All
// methods are safe for concurrent use.
type Service struct {
	// defaultScope serves lookups whose context carries no scope.
	defaultScope *scopes.Scope

	// logger is the logger to use.
	logger model.Logger

	// resolver is the real resolver backing shared.
	resolver model.Resolver

	// shared is the process-wide resolution cache.
	shared resolvecache.Cache

	// table is the immutable static override table.
	table *statictable.Table
}

// NewService creates a Service using the static overrides in config,
// which may be nil to mean "no static overrides". A nil logger means
// discard logs and a nil resolver means the system resolver.
func NewService(config *Config, logger Logger, resolver Resolver) *Service {
	if logger == nil {
		logger = model.DiscardLogger
	}
	if resolver == nil {
		resolver = sysresolver.NewSystemResolver(logger)
	}
	if config == nil {
		var err error
		config, err = NewConfig(nil)
		runtimex.PanicOnError(err, "dnscope: cannot build an empty config")
	}
	return &Service{
		defaultScope: scopes.New(),
		logger:       logger,
		resolver:     resolver,
		shared:       resolvecache.Cache{},
		table:        config.table,
	}
}

// Scope returns the scope serving lookups for ctx: the scope carried
// by ctx or, without one, the service's default scope.
func (svc *Service) Scope(ctx context.Context) *Scope {
	if scope, found := scopes.FromContext(ctx); found {
		return scope
	}
	return svc.defaultScope
}

// SetOverride maps hostname to address inside the scope serving ctx.
// The address is validated at lookup time. Setting an override does
// not invalidate a resolution already cached for hostname in that
// scope: the cached value is served until Scope.FlushCache.
func (svc *Service) SetOverride(ctx context.Context, hostname, address string) {
	svc.Scope(ctx).SetOverride(hostname, address)
}

// ClearOverride removes the override for hostname, if any, from the
// scope serving ctx.
func (svc *Service) ClearOverride(ctx context.Context, hostname string) {
	svc.Scope(ctx).ClearOverride(hostname)
}

// LookupAllHostAddr resolves hostname to its full address set.
//
// An empty hostname fails with ErrInvalidArgument. Otherwise the
// hostname is converted to ASCII (IDNA) and lowercased, numeric
// literals short-circuit to themselves, and everything else goes
// through the fallback chain of the scope serving ctx. Any failure
// beyond argument validation is returned as a *ResolutionError
// wrapping the cause.
func (svc *Service) LookupAllHostAddr(ctx context.Context, hostname string) (AddrSet, error) {
	if hostname == "" {
		return nil, ErrInvalidArgument
	}
	host, err := idna.ToASCII(hostname)
	if err != nil {
		return nil, newResolutionError(hostname, err)
	}
	// DNS is case insensitive.
	host = strings.ToLower(host)
	// IP literals never touch the overlay, like getaddrinfo.
	if ip, err := addrparse.Parse(host); err == nil {
		return addrparse.AddrSet(ip), nil
	}
	scope := svc.Scope(ctx)
	addrs, err := scope.Cache().Resolve(host, func() (model.AddrSet, error) {
		return svc.lookupUncached(ctx, scope, host)
	})
	if err != nil {
		return nil, newResolutionError(host, err)
	}
	return addrs, nil
}

// lookupUncached walks the fallback chain for an already-normalized
// hostname missing from the scope's cache: scoped overrides first,
// then the static table, then the shared cache.
func (svc *Service) lookupUncached(ctx context.Context, scope *Scope, hostname string) (model.AddrSet, error) {
	if address, found := scope.Override(hostname); found {
		svc.logger.Debugf("dnscope: %s: override %s in scope %s", hostname, address, scope.ID())
		return parseOverride(address)
	}
	if address, found := svc.table.Lookup(hostname); found {
		svc.logger.Debugf("dnscope: %s: static override %s", hostname, address)
		return parseOverride(address)
	}
	svc.logger.Debugf("dnscope: %s: no override, delegating to the shared cache", hostname)
	return svc.shared.Resolve(hostname, func() (model.AddrSet, error) {
		return svc.resolverLookup(ctx, hostname)
	})
}

// resolverLookup invokes the real resolver and converts its textual
// addresses to their binary form.
func (svc *Service) resolverLookup(ctx context.Context, hostname string) (model.AddrSet, error) {
	addrs, err := svc.resolver.LookupHost(ctx, hostname)
	if err != nil {
		return nil, err
	}
	var out model.AddrSet
	for _, addr := range addrs {
		// IPv6 addresses may carry a zone suffix.
		if idx := strings.Index(addr, "%"); idx >= 0 {
			addr = addr[:idx]
		}
		ip, err := addrparse.Parse(addr)
		if err != nil {
			svc.logger.Warnf("dnscope: %s: resolver returned unparsable %q", hostname, addr)
			continue
		}
		out = append(out, ip)
	}
	if len(out) <= 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownHost, hostname)
	}
	return out, nil
}

// parseOverride converts an override's textual address into a
// single-element address set.
func parseOverride(address string) (model.AddrSet, error) {
	ip, err := addrparse.Parse(address)
	if err != nil {
		return nil, err
	}
	return addrparse.AddrSet(ip), nil
}
