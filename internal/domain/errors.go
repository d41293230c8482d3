package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it, such as the
// HTTP layer choosing a status code.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
	KindGateway    Kind = "gateway"
	// KindUnauthorized is a failed login, distinct from an authenticated
	// caller being denied.
	KindUnauthorized Kind = "unauthorized"
)

// Sentinels for errors.Is matching on the kind alone.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrGateway    = &Error{Kind: KindGateway}

	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

// Error is the error type returned by the ledger services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works
// for every conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// GatewayError wraps a failed outbound payment-provider call.
func GatewayError(msg string, err error) error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" if err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
