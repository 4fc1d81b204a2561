package cstable

import (
	"errors"
	"fmt"
)

// ErrKind is one of the error kinds surfaced to callers per the error
// handling design: decoders and the table reader/writer never retry, they
// wrap the failure in an Error and return it verbatim.
type ErrKind int

const (
	// IOError wraps a failure from the underlying file or arena.
	IOError ErrKind = iota + 1
	// FormatError means the file itself is malformed: bad magic, unknown
	// version, an index offset past EOF, or a corrupt page index.
	FormatError
	// UnsupportedEncoding means a column's storage_type is not recognized
	// at open time.
	UnsupportedEncoding
	// DecodeError means a page's bytes could not be decoded; the column
	// reader that raised it moves to EOF.
	DecodeError
	// InvariantViolation means a commit-time check failed (row-count
	// mismatch across columns, or a repeated column with no rlvl==0
	// event).
	InvariantViolation
	// NotFound means a column name was not present in the schema.
	NotFound
	// ArgumentError means a caller passed a value that does not match the
	// column's logical type, or a level outside [0, max].
	ArgumentError
)

func (k ErrKind) String() string {
	switch k {
	case IOError:
		return "IO_ERROR"
	case FormatError:
		return "FORMAT_ERROR"
	case UnsupportedEncoding:
		return "UNSUPPORTED_ENCODING"
	case DecodeError:
		return "DECODE_ERROR"
	case InvariantViolation:
		return "INVARIANT_VIOLATION"
	case NotFound:
		return "NOT_FOUND"
	case ArgumentError:
		return "ARGUMENT_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Error is the error type returned across every fallible cstable call. It
// carries the kind from §7 of the specification plus a wrapped cause so
// callers can still errors.Is/errors.As through to the underlying failure
// (a truncated read, an os.PathError, and so on).
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cstable: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("cstable: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind ErrKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErr(kind ErrKind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// KindOf returns the ErrKind carried by err, or 0 if err is nil or was not
// produced by this package.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
