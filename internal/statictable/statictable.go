// Package statictable implements the immutable hostname-override table
// loaded at process start, e.g., from a hosts-style file or from the
// declarative builder in the root package.
package statictable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dnscope/dnscope/internal/addrparse"
	"github.com/dnscope/dnscope/internal/model"
)

// Mapping associates one textual address with the hostnames that
// should resolve to it.
type Mapping struct {
	// Address is the textual IPv4/IPv6 literal.
	Address string

	// Hosts contains one or more hostnames, stored lowercase.
	Hosts []string
}

// Table is an immutable mapping from hostname to textual address.
// Because it is read-only after construction, it is safe for
// concurrent use without external locking.
type Table struct {
	byHost   map[string]string
	mappings []Mapping
}

// ErrEmptyHostname indicates a mapping contains an empty hostname.
var ErrEmptyHostname = errors.New("statictable: empty hostname in mapping")

// New builds a Table from the given ordered mappings. Hostnames are
// normalized to lower case. Each address must be a valid numeric
// literal, otherwise we return an error wrapping
// model.ErrInvalidAddressFormat. A hostname appearing more than once,
// in the same mapping or across mappings, is a configuration error
// reported by wrapping model.ErrDuplicateHostMapping, never resolved
// by overwriting.
func New(mappings []Mapping) (*Table, error) {
	table := &Table{
		byHost:   make(map[string]string),
		mappings: nil,
	}
	for _, entry := range mappings {
		if _, err := addrparse.Parse(entry.Address); err != nil {
			return nil, err
		}
		hosts := make([]string, 0, len(entry.Hosts))
		for _, host := range entry.Hosts {
			if host == "" {
				return nil, ErrEmptyHostname
			}
			host = strings.ToLower(host)
			if _, found := table.byHost[host]; found {
				return nil, fmt.Errorf("%w: %q", model.ErrDuplicateHostMapping, host)
			}
			table.byHost[host] = entry.Address
			hosts = append(hosts, host)
		}
		table.mappings = append(table.mappings, Mapping{
			Address: entry.Address,
			Hosts:   hosts,
		})
	}
	return table, nil
}

// Lookup returns the configured override address for an exact,
// already-normalized hostname, if any.
func (t *Table) Lookup(hostname string) (string, bool) {
	addr, found := t.byHost[hostname]
	return addr, found
}

// Mappings returns the (address, hostnames) pairs in declaration
// order. The caller must not mutate the returned slice.
func (t *Table) Mappings() []Mapping {
	return t.mappings
}
