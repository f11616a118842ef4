// Package errs defines the closed set of error kinds surfaced by the core
// to external collaborators. Every kind is comparable with errors.Is; the
// tokenizer, fingerprint builder, and similarity kernels never return these
// (they degrade instead of failing) — only the store, LSH, query, and merge
// layers do.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the closed error kinds from the specification.
type Kind int

const (
	// BlankInput: code string empty after trimming.
	BlankInput Kind = iota
	// NotFound: no snippet/collection for the given key.
	NotFound
	// Ambiguous: a checksum prefix matches more than one snippet.
	Ambiguous
	// Duplicate: name already present (or an LSH key already present,
	// which is recovered silently inside the LSH wrapper and never
	// reaches this type).
	Duplicate
	// InvalidParameter: threshold out of range, non-positive permutation
	// count, empty tag.
	InvalidParameter
	// LastNameProtected: attempt to remove the final name of a snippet.
	LastNameProtected
	// IOFailure: underlying storage or filesystem error.
	IOFailure
	// CorruptCache: cache file cannot be deserialized.
	CorruptCache
)

func (k Kind) String() string {
	switch k {
	case BlankInput:
		return "blank_input"
	case NotFound:
		return "not_found"
	case Ambiguous:
		return "ambiguous"
	case Duplicate:
		return "duplicate"
	case InvalidParameter:
		return "invalid_parameter"
	case LastNameProtected:
		return "last_name_protected"
	case IOFailure:
		return "io_failure"
	case CorruptCache:
		return "corrupt_cache"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by the core. Op names the
// failing operation (e.g. "store.NameRemove"); Err, when present, is the
// wrapped underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errs.New(errs.NotFound, "", nil)) or, more simply,
// use the Kind-only sentinel via errs.Is(err, errs.NotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error for the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
