// Package errors provides the application error type shared by services and
// HTTP handlers. Services declare sentinel errors with a stable reason code and
// handlers translate them into responses with response.ErrorFrom.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// UnknownReason is reported for errors that carry no ApplicationError.
const UnknownReason = ""

// ApplicationError is an error with an HTTP status, a machine readable reason
// and a human readable message.
type ApplicationError struct {
	Code     int
	Reason   string
	Message  string
	Metadata map[string]string
	cause    error
}

func (e *ApplicationError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ApplicationError) Unwrap() error {
	return e.cause
}

// Is matches any ApplicationError with the same code and reason, so that a copy
// returned by WithCause still satisfies errors.Is against the sentinel.
func (e *ApplicationError) Is(target error) bool {
	var t *ApplicationError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Reason == t.Reason
}

// WithCause returns a copy of e wrapping cause.
func (e *ApplicationError) WithCause(cause error) *ApplicationError {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithMetadata returns a copy of e with md merged into its metadata.
func (e *ApplicationError) WithMetadata(md map[string]string) *ApplicationError {
	cp := *e
	cp.Metadata = make(map[string]string, len(e.Metadata)+len(md))
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	for k, v := range md {
		cp.Metadata[k] = v
	}
	return &cp
}

// New creates an ApplicationError.
func New(code int, reason, message string) *ApplicationError {
	return &ApplicationError{Code: code, Reason: reason, Message: message}
}

func BadRequest(reason, message string) *ApplicationError {
	return New(http.StatusBadRequest, reason, message)
}

func Unauthorized(reason, message string) *ApplicationError {
	return New(http.StatusUnauthorized, reason, message)
}

func Forbidden(reason, message string) *ApplicationError {
	return New(http.StatusForbidden, reason, message)
}

func NotFound(reason, message string) *ApplicationError {
	return New(http.StatusNotFound, reason, message)
}

func TooManyRequests(reason, message string) *ApplicationError {
	return New(http.StatusTooManyRequests, reason, message)
}

func InternalServer(reason, message string) *ApplicationError {
	return New(http.StatusInternalServerError, reason, message)
}

func ServiceUnavailable(reason, message string) *ApplicationError {
	return New(http.StatusServiceUnavailable, reason, message)
}

// FromError extracts the first ApplicationError in err's chain. Errors without
// one become a 500 with the error text as message.
func FromError(err error) *ApplicationError {
	if err == nil {
		return nil
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(http.StatusInternalServerError, UnknownReason, err.Error())
}

// Code returns the HTTP status carried by err, 200 for nil.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return FromError(err).Code
}

// Reason returns the reason code carried by err.
func Reason(err error) string {
	if err == nil {
		return UnknownReason
	}
	return FromError(err).Reason
}

// Message returns the client facing message of err, or "" when err carries no
// ApplicationError.
func Message(err error) string {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
