// Package apperr defines the error taxonomy surfaced on the HTTP API.
// Every error sent to a client is shaped {message, data:{}} with a status
// drawn from one of the kinds below.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal   Kind = iota // default/fallback, 500
	KindValidation             // malformed or missing input, 422
	KindNotFound               // 404
	KindAuth                   // 401
	KindForbidden              // 403
	KindConflict               // duplicate resource, 422
)

// Error is an application error with a client-safe message.
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

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error { return &Error{Kind: KindValidation, Message: message} }
func NotFound(message string) *Error   { return &Error{Kind: KindNotFound, Message: message} }
func Auth(message string) *Error       { return &Error{Kind: KindAuth, Message: message} }
func Forbidden(message string) *Error  { return &Error{Kind: KindForbidden, Message: message} }
func Conflict(message string) *Error   { return &Error{Kind: KindConflict, Message: message} }

// Internal wraps an unexpected error behind a generic client message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Something went wrong! Try again later!", Err: err}
}

// From extracts an *Error from err, falling back to Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
