// Package apperr defines the error taxonomy surfaced by the gateway and its
// mapping onto HTTP status codes and the public JSON envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindAuthMissing
	KindAuthRejected
	KindBadRequest
	KindNotFound
	KindStorage
	KindRateLimited
	KindUnavailable
)

// Error carries a Kind, the public message and an optional diagnostic string.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindAuthMissing:
		return http.StatusUnauthorized
	case KindAuthRejected:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Tag is the value of the "error" field in the response envelope.
func (e *Error) Tag() string {
	switch e.Kind {
	case KindAuthMissing:
		return "Unauthorized"
	case KindAuthRejected:
		return "Forbidden"
	case KindBadRequest:
		return "Bad request"
	case KindNotFound:
		return "Not found"
	case KindRateLimited:
		return "Too many requests"
	case KindUnavailable:
		return "Service unavailable"
	default:
		return "Internal server error"
	}
}

func AuthMissing(msg string) *Error {
	return &Error{Kind: KindAuthMissing, Message: msg}
}

func AuthRejected(err error) *Error {
	e := &Error{Kind: KindAuthRejected, Message: "Invalid or expired token", Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unavailable(msg string) *Error {
	return &Error{Kind: KindUnavailable, Message: msg}
}

// Storage wraps a failure of the database or object store. The engine
// message is kept as the public diagnostic.
func Storage(err error) *Error {
	msg := "storage error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// From converts any error into an *Error, defaulting to KindInternal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "Something went wrong", Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
