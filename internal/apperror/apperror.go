// Package apperror classifies failures at service boundaries so the HTTP
// layer can answer with a status code that matches the cause.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationFailed"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindUnavailable:
		return "CollaboratorUnavailable"
	default:
		return "InternalFailure"
	}
}

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error returns the client-facing message. Internal failures surface the
// underlying error text.
func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Conflict(op string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func Unavailable(op string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Internal keeps err's text as the client-facing message.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// Collaborator wraps an error returned by an external service call. An open
// circuit breaker becomes KindUnavailable, anything else KindInternal. Errors
// that are already classified pass through unchanged.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return &Error{Kind: KindUnavailable, Op: op, Message: err.Error(), Err: err}
	}

	return &Error{Kind: KindInternal, Op: op, Err: err}
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func OpOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Op
	}
	return ""
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
