// Package errkind defines the error taxonomy the render-path core surfaces
// to its caller (spec.md §7). Every error that crosses a component boundary
// is wrapped in an Error carrying one of these kinds so the coordinator can
// decide caching behavior without string-matching error messages.
package errkind

import "errors"

// Kind enumerates the semantic categories of failure spec.md §7 defines.
type Kind int

const (
	// Internal marks a bug: an invariant was violated.
	Internal Kind = iota
	// BadRequest marks an unrenderable request.
	BadRequest
	// NoData marks a catalog miss: no dataset exists for the coordinates.
	NoData
	// Transient marks an I/O error that is safe to retry.
	Transient
	// Decode marks a chunk that failed to parse under its declared codec.
	Decode
	// Timeout marks a stage that exceeded its deadline.
	Timeout
	// Shutdown marks a coordinator that has stopped accepting new work.
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case NoData:
		return "no_data"
	case Transient:
		return "transient"
	case Decode:
		return "decode"
	case Timeout:
		return "timeout"
	case Shutdown:
		return "shutdown"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind. A nil err still produces a non-nil *Error
// carrying only the kind, useful for sentinel conditions like NoData.
func New(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Of returns the Kind carried by err, or Internal if err does not wrap
// an *Error.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}

// Cacheable reports whether a build result with this error kind may ever
// be cached. Only NoData is cacheable, and only in L1 with a short TTL
// override — the coordinator (not this package) applies that policy.
func (k Kind) Cacheable() bool {
	return k == NoData
}
