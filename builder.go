package dnscope

//
// Declarative override-configuration builder
//

import (
	"github.com/dnscope/dnscope/internal/statictable"
)

// Mapping associates one textual address with the hostnames that
// resolve to it.
type Mapping = statictable.Mapping

// HostList is the list of hostnames in a single builder mapping.
type HostList []string

// Hosts lists one or more hostnames to be mapped by Builder.Map.
func Hosts(hosts ...string) HostList {
	return HostList(hosts)
}

// Address is the textual numeric address a mapping points to.
type Address string

// To names the address side of a Builder.Map call.
func To(address string) Address {
	return Address(address)
}

// Builder accumulates (hostnames, address) pairs and validates them
// when Build is called. A Builder is immutable: Map returns a new
// Builder and leaves its receiver untouched, so intermediate builders
// can be shared and reused freely.
//
// The typical usage is:
//
//	config, err := dnscope.NewBuilder().
//		Map(dnscope.Hosts("www.example.com"), dnscope.To("127.0.0.1")).
//		Map(dnscope.Hosts("www.example.org"), dnscope.To("127.0.0.2")).
//		Build()
type Builder struct {
	pending []Mapping
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Map returns a new Builder that additionally maps every hostname in
// hosts to the given address. Validation is deferred to Build.
func (b *Builder) Map(hosts HostList, address Address) *Builder {
	pending := make([]Mapping, 0, len(b.pending)+1)
	pending = append(pending, b.pending...)
	pending = append(pending, Mapping{
		Address: string(address),
		Hosts:   []string(hosts),
	})
	return &Builder{pending: pending}
}

// Build validates the accumulated mappings and produces the immutable
// Config. Hostnames are normalized to lower case. Build fails with an
// error wrapping ErrInvalidAddressFormat when an address is not a
// numeric literal and with an error wrapping ErrDuplicateHostMapping
// when the same hostname appears twice: duplicates are rejected, not
// overwritten.
func (b *Builder) Build() (*Config, error) {
	return NewConfig(b.pending)
}

// Config is an immutable override configuration mapping hostnames to
// textual addresses. Pass it to NewService to install the mappings as
// the process-wide static override table.
type Config struct {
	table *statictable.Table
}

// NewConfig builds a Config directly from ordered mappings, applying
// the same validation as Builder.Build. This is how configurations
// loaded from hosts-style files bypass the fluent builder.
func NewConfig(mappings []Mapping) (*Config, error) {
	table, err := statictable.New(mappings)
	if err != nil {
		return nil, err
	}
	return &Config{table: table}, nil
}

// Mappings returns the configured (address, hostnames) pairs in
// declaration order, with hostnames lowercased.
func (c *Config) Mappings() []Mapping {
	return c.table.Mappings()
}
