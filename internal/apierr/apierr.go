// Package apierr defines the domain error taxonomy raised by the service
// layer and mapped to HTTP statuses exactly once at the handler boundary.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error for status mapping.
type Kind int

const (
	// KindNotFound means a referenced id or email does not exist.
	KindNotFound Kind = iota
	// KindDuplicate means a unique field (email) collided.
	KindDuplicate
	// KindValidation means the request passed schema checks but violated a
	// business rule (no-op update, reused password, bad sort key).
	KindValidation
	// KindBadCredentials means login failed.
	KindBadCredentials
)

// Error is a domain error with an HTTP-mappable kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Status returns the HTTP status the kind maps to.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindBadCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// NotFound builds a resource-not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Duplicate builds a duplicate-resource error.
func Duplicate(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a request-validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// BadCredentials builds a login-failure error.
func BadCredentials(message string) *Error {
	return &Error{Kind: KindBadCredentials, Message: message}
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	var domainErr *Error
	return errors.As(err, &domainErr) && domainErr.Kind == kind
}
