package model

//
// Shared error values
//

import "errors"

// ErrInvalidAddressFormat indicates that a configured or overridden
// address string is not a valid numeric IPv4 or IPv6 literal. This is
// a configuration bug and is never silently defaulted.
var ErrInvalidAddressFormat = errors.New("invalid address format")

// ErrDuplicateHostMapping indicates that the same hostname has been
// mapped twice while building an override table.
var ErrDuplicateHostMapping = errors.New("duplicate host mapping")

// ErrUnknownHost indicates that the real resolver found no addresses
// for a hostname. Unlike successes, this outcome is never cached.
var ErrUnknownHost = errors.New("unknown host")
