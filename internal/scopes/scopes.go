// Package scopes implements execution-context-scoped state for the
// hostname-resolution overlay. A Scope bundles the override registry
// and the resolution cache private to one context lineage. The scope
// travels inside a context.Context: every context derived from a
// context carrying a Scope shares that same Scope instance, which
// gives children live visibility of their parent's overrides.
package scopes

import (
	"context"
	"strings"
	"sync"

	"github.com/dnscope/dnscope/internal/resolvecache"
	"github.com/google/uuid"
)

// Scope holds the overrides and the resolution cache for one context
// lineage. Parent and children share the instance, so all methods are
// safe for concurrent use. Construct with New or Snapshot.
type Scope struct {
	// cache is this lineage's private resolution cache.
	cache resolvecache.Cache

	// id uniquely identifies the scope in log messages.
	id string

	// mu protects overrides.
	mu sync.Mutex

	// overrides maps lowercase hostnames to textual addresses.
	overrides map[string]string
}

// New creates an empty Scope.
func New() *Scope {
	return &Scope{
		cache:     resolvecache.Cache{},
		id:        uuid.NewString(),
		mu:        sync.Mutex{},
		overrides: make(map[string]string),
	}
}

// Snapshot creates a Scope whose overrides are a point-in-time copy
// of parent's. Later mutations of either scope do not affect the
// other, and the new scope starts with an empty resolution cache.
func Snapshot(parent *Scope) *Scope {
	scope := New()
	defer parent.mu.Unlock()
	parent.mu.Lock()
	for host, addr := range parent.overrides {
		scope.overrides[host] = addr
	}
	return scope
}

// ID returns the unique scope identifier.
func (s *Scope) ID() string {
	return s.id
}

// SetOverride maps hostname to the given textual address inside this
// scope. The hostname is normalized to lower case. The address is
// validated at lookup time, not here.
func (s *Scope) SetOverride(hostname, address string) {
	defer s.mu.Unlock()
	s.mu.Lock()
	s.overrides[strings.ToLower(hostname)] = address
}

// Override returns the override for an already-normalized hostname.
func (s *Scope) Override(hostname string) (string, bool) {
	defer s.mu.Unlock()
	s.mu.Lock()
	addr, found := s.overrides[hostname]
	return addr, found
}

// HasOverride tells whether hostname has an override in this scope.
func (s *Scope) HasOverride(hostname string) bool {
	_, found := s.Override(hostname)
	return found
}

// ClearOverride removes the override for hostname, if any.
func (s *Scope) ClearOverride(hostname string) {
	defer s.mu.Unlock()
	s.mu.Lock()
	delete(s.overrides, strings.ToLower(hostname))
}

// ClearAll removes every override from this scope. Cached
// resolutions are untouched: use FlushCache for those.
func (s *Scope) ClearAll() {
	defer s.mu.Unlock()
	s.mu.Lock()
	s.overrides = make(map[string]string)
}

// Cache returns this scope's resolution cache.
func (s *Scope) Cache() *resolvecache.Cache {
	return &s.cache
}

// FlushCache drops the cached resolutions of this scope, so the next
// lookup of each hostname walks the override chain again. Overrides
// are untouched.
func (s *Scope) FlushCache() {
	s.cache.Flush()
}

// Reset drops both the overrides and the cached resolutions.
func (s *Scope) Reset() {
	s.ClearAll()
	s.FlushCache()
}

// scopeKey is the context key for the Scope. The empty struct makes
// the key collision-free.
type scopeKey struct{}

// NewContext returns a context carrying the given scope. Every
// context derived from the returned one shares the scope instance.
func NewContext(parent context.Context, scope *Scope) context.Context {
	return context.WithValue(parent, scopeKey{}, scope)
}

// FromContext returns the scope carried by ctx, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	scope, found := ctx.Value(scopeKey{}).(*Scope)
	return scope, found
}
