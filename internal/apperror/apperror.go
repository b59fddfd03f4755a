// Package apperror defines the error taxonomy shared by all services.
// Services attach a Kind to failures so handlers can map them to HTTP
// statuses without inspecting error strings.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks malformed or missing input.
	KindValidation
	// KindConflict marks a uniqueness violation.
	KindConflict
	// KindNotFound marks a referenced entity that does not exist.
	KindNotFound
	// KindAuth marks a missing, invalid or expired credential.
	KindAuth
	// KindStore marks an underlying persistence failure.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside a message and an optional cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of this error.
func (e *Error) Kind() Kind { return e.kind }

// New builds a classified error with a static message.
func New(k Kind, msg string) error {
	return &Error{kind: k, msg: msg}
}

// Newf builds a classified error with a formatted message.
func Newf(k Kind, format string, args ...any) error {
	return &Error{kind: k, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an underlying error.
func Wrap(k Kind, msg string, err error) error {
	return &Error{kind: k, msg: msg, err: err}
}

// KindOf reports the Kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
