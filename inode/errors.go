package inode

import "fmt"

// Kind classifies the failure modes an operation against the inode table
// can produce. It is the internal analogue of a POSIX errno, translated to
// the real thing at the transport boundary (see fuseadapter).
type Kind int

const (
	// KindNotFound indicates a missing inode or directory entry.
	KindNotFound Kind = iota

	// KindNotADirectory indicates an operation that requires a directory
	// was given something else.
	KindNotADirectory

	// KindIsADirectory indicates an operation that requires a non-directory
	// was given a directory.
	KindIsADirectory

	// KindAlreadyExists indicates a create-style operation collided with an
	// existing directory entry.
	KindAlreadyExists

	// KindNotEmpty indicates an rmdir of a directory that still has
	// entries.
	KindNotEmpty

	// KindInvalidInput indicates a request the dispatcher refuses as
	// malformed: a rename with non-zero flags, or a rename of a directory
	// into itself or its own descendant. Names are not validated, and a
	// negative read or write offset yields zero bytes rather than this
	// error.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNotADirectory:
		return "not a directory"
	case KindIsADirectory:
		return "is a directory"
	case KindAlreadyExists:
		return "already exists"
	case KindNotEmpty:
		return "not empty"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every inode table and dispatcher
// operation that can fail for a client-triggered reason. It is never used
// for invariant violations, which panic instead.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// ErrNotFound returns a KindNotFound error with the given detail message.
func ErrNotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

// ErrNotADirectory returns a KindNotADirectory error with the given detail
// message.
func ErrNotADirectory(format string, args ...interface{}) error {
	return newError(KindNotADirectory, format, args...)
}

// ErrIsADirectory returns a KindIsADirectory error with the given detail
// message.
func ErrIsADirectory(format string, args ...interface{}) error {
	return newError(KindIsADirectory, format, args...)
}

// ErrAlreadyExists returns a KindAlreadyExists error with the given detail
// message.
func ErrAlreadyExists(format string, args ...interface{}) error {
	return newError(KindAlreadyExists, format, args...)
}

// ErrNotEmpty returns a KindNotEmpty error with the given detail message.
func ErrNotEmpty(format string, args ...interface{}) error {
	return newError(KindNotEmpty, format, args...)
}

// ErrInvalidInput returns a KindInvalidInput error with the given detail
// message.
func ErrInvalidInput(format string, args ...interface{}) error {
	return newError(KindInvalidInput, format, args...)
}

// KindOf extracts the Kind from err if it is an *Error, returning ok=false
// otherwise.
func KindOf(err error) (k Kind, ok bool) {
	e, ok := err.(*Error)
	if !ok {
		return 0, false
	}
	return e.Kind, true
}
