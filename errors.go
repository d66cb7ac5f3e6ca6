package dnscope

//
// Error taxonomy
//

import (
	"errors"
	"fmt"

	"github.com/dnscope/dnscope/internal/model"
)

// ErrInvalidArgument indicates that the caller invoked a lookup with
// an empty hostname. This is a programming error, reported distinctly
// from "host not found": it is never wrapped into a ResolutionError.
var ErrInvalidArgument = errors.New("dnscope: invalid empty hostname")

// ErrInvalidAddressFormat indicates that a configured or overridden
// address string is not a valid numeric IPv4/IPv6 literal.
var ErrInvalidAddressFormat = model.ErrInvalidAddressFormat

// ErrDuplicateHostMapping indicates that a builder or hosts file maps
// the same hostname twice.
var ErrDuplicateHostMapping = model.ErrDuplicateHostMapping

// ErrUnknownHost indicates that the real resolver found no addresses
// for the hostname.
var ErrUnknownHost = model.ErrUnknownHost

// ResolutionError is the single failure kind returned by
// Service.LookupAllHostAddr. It wraps the original cause, so callers
// branch on one error type while diagnostics stay inspectable through
// errors.Is and errors.As.
type ResolutionError struct {
	// Hostname is the hostname whose resolution failed.
	Hostname string

	// WrappedErr is the underlying cause.
	WrappedErr error
}

var _ error = &ResolutionError{}

// Error implements error.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("dnscope: resolving %q: %s", e.Hostname, e.WrappedErr.Error())
}

// Unwrap allows to access the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.WrappedErr
}

// newResolutionError wraps err without ever double wrapping.
func newResolutionError(hostname string, err error) *ResolutionError {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr
	}
	return &ResolutionError{
		Hostname:   hostname,
		WrappedErr: err,
	}
}
