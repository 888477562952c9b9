// Package failure defines the error kinds shared by the auth emulator,
// the table stores and the HTTP gateway.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an expected failure.
type Kind string

// Failure kinds.
const (
	DuplicateIdentity  Kind = "duplicate_identity"
	InvalidCredentials Kind = "invalid_credentials"
	NotAuthenticated   Kind = "not_authenticated"
	StorageUnavailable Kind = "storage_unavailable"
	InvalidInput       Kind = "invalid_input"
)

// Sentinels for errors.Is matching against a kind.
var (
	ErrDuplicateIdentity  = &Error{Kind: DuplicateIdentity}
	ErrInvalidCredentials = &Error{Kind: InvalidCredentials}
	ErrNotAuthenticated   = &Error{Kind: NotAuthenticated}
	ErrStorageUnavailable = &Error{Kind: StorageUnavailable}
	ErrInvalidInput       = &Error{Kind: InvalidInput}
)

// Error is a failure of a known kind raised by operation Op.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// New returns an Error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a failure of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first failure in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
