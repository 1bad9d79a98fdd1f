// Package apperror is the failure taxonomy shared by every service. Services
// translate their sentinel errors into an *Error at their boundary and the
// HTTP layer maps the Kind onto a status code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal_error"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error   { return New(KindValidation, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }

func Conflict(msg string, err error) *Error {
	return Wrap(KindConflict, msg, err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "internal server error", err)
}

// KindOf returns the kind of the first *Error in err's chain, internal otherwise.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message. Internal failures never leak
// their cause.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		return ae.Message
	}
	return "internal server error"
}

// HTTPStatus maps a kind to its response code. Business-rule conflicts are
// reported as 400 to match the public API contract.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
