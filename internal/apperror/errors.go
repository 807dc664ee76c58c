// Package apperror classifies service failures into the four kinds the API
// exposes. Handlers return these errors unchanged; the HTTP error handler
// maps them to status codes and keeps internal detail out of responses.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrInternal   = errors.New("internal error")
)

type Error struct {
	kind    error
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Is(target error) bool { return target == e.kind }

func (e *Error) Unwrap() error { return e.cause }

// Message is the client-safe description. Internal faults never leak their
// cause here.
func (e *Error) Message() string {
	if e.kind == ErrInternal {
		return "Server error"
	}
	return e.message
}

func Validation(message string) *Error {
	return &Error{kind: ErrValidation, message: message}
}

func Forbidden(message string) *Error {
	return &Error{kind: ErrForbidden, message: message}
}

func NotFound(message string) *Error {
	return &Error{kind: ErrNotFound, message: message}
}

func Internal(cause error) *Error {
	return &Error{kind: ErrInternal, message: "internal error", cause: cause}
}

// Status maps an error to its HTTP status code. Unclassified errors are
// treated as internal faults.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage is the text returned to the caller for any error.
func ClientMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return "Server error"
}
