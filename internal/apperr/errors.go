// Package apperr defines the error kinds surfaced by the storefront core.
// Every expected failure carries a Kind; anything without one is Internal.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	OutOfStock
	EmptyCart
	InvalidTransition
	ValidationFailed
	Unauthenticated
	Forbidden
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case OutOfStock:
		return "out_of_stock"
	case EmptyCart:
		return "empty_cart"
	case InvalidTransition:
		return "invalid_transition"
	case ValidationFailed:
		return "validation_failed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified error. Err is optional and kept for errors.Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with fmt formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it in the chain.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err. Internal errors never
// expose their detail.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal error"
}
