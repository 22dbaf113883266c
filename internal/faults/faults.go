// Package faults defines the error taxonomy of a linkage run. Every failure
// that aborts a run carries one of the kinds below so the CLI can report it
// and tests can assert on it with errors.Is.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a run-aborting failure
type Kind int

const (
	// KindMalformedInput: a record field could not be parsed into its structured form
	KindMalformedInput Kind = iota + 1
	// KindMissingCandidate: a pair or record expected in a precomputed matrix is absent
	KindMissingCandidate
	// KindResource: checkpoint / file / database / object store failure
	KindResource
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrMalformedInput   = &Error{Kind: KindMalformedInput}
	ErrMissingCandidate = &Error{Kind: KindMissingCandidate}
	ErrResource         = &Error{Kind: KindResource}
)

func (k Kind) String() string {
	switch k {
	case KindMalformedInput:
		return "malformed input"
	case KindMissingCandidate:
		return "missing candidate"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by the linkage packages
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "address.parse"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind only, so errors.Is(err, ErrResource) holds for every
// resource failure regardless of operation or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Malformed builds a MalformedInputError
func Malformed(op, format string, args ...interface{}) error {
	return &Error{Kind: KindMalformedInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Missing builds a MissingCandidateError
func Missing(op, format string, args ...interface{}) error {
	return &Error{Kind: KindMissingCandidate, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Resource wraps an I/O style failure. A nil cause yields nil.
func Resource(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindResource, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
