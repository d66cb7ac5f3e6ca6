// Package resolvecache implements the forever cache used by the
// hostname-resolution overlay. A Cache is an explicit map guarded by
// per-key single-flight coordination: the first caller for an uncached
// key performs the lookup, concurrent callers for the same key wait
// for that computation and share its outcome, and callers for
// different keys never block each other. Successful results are
// retained until the cache is flushed; failures are never stored, so
// the next call for the same key recomputes.
package resolvecache

import (
	"sync"

	"github.com/dnscope/dnscope/internal/model"
	"github.com/dnscope/dnscope/internal/runtimex"
	"golang.org/x/sync/singleflight"
)

// LookupFunc computes the address set for a cache key on miss.
type LookupFunc func() (model.AddrSet, error)

// Cache maps hostnames to resolved address sets. The zero value is
// ready to use. Safe for concurrent use.
type Cache struct {
	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]model.AddrSet
}

// Resolve returns the cached address set for key or, on miss, invokes
// lookup at most once across all concurrent callers for key and
// caches its result on success.
func (c *Cache) Resolve(key string, lookup LookupFunc) (model.AddrSet, error) {
	if addrs, found := c.get(key); found {
		return addrs, nil
	}
	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A previous flight may have completed between our fast-path
		// check and joining this flight.
		if addrs, found := c.get(key); found {
			return addrs, nil
		}
		addrs, err := lookup()
		if err != nil {
			return nil, err
		}
		runtimex.Assert(len(addrs) > 0, "resolvecache: caching an empty address set")
		c.set(key, addrs)
		return addrs, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(model.AddrSet), nil
}

// Get returns the cached address set for key without triggering any
// computation on miss.
func (c *Cache) Get(key string) (model.AddrSet, bool) {
	return c.get(key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	defer c.mu.Unlock()
	c.mu.Lock()
	return len(c.entries)
}

// Flush drops every cached entry. In-flight computations are not
// interrupted and will still store their result when they complete.
func (c *Cache) Flush() {
	defer c.mu.Unlock()
	c.mu.Lock()
	c.entries = nil
}

func (c *Cache) get(key string) (model.AddrSet, bool) {
	defer c.mu.Unlock()
	c.mu.Lock()
	addrs, found := c.entries[key]
	return addrs, found
}

func (c *Cache) set(key string, addrs model.AddrSet) {
	defer c.mu.Unlock()
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]model.AddrSet)
	}
	c.entries[key] = addrs
}
