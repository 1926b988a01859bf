package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the gateway
var (
	// Upstream / IdP errors
	ErrUpstreamAuth = errors.New("upstream auth error")
	ErrBootstrap    = errors.New("bootstrap error")

	// Startup errors
	ErrConfiguration = errors.New("configuration error")

	// Session errors
	ErrInvalidation    = errors.New("invalidation error")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Authorized client errors
	ErrClientNotFound = errors.New("authorized client not found")

	// Request errors
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidRequest = errors.New("invalid request")
	ErrForbidden      = errors.New("forbidden")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// StatusError is returned when a downstream HTTP call answers with a non-2xx status.
// It unwraps to its Kind so callers can match with Is(err, ErrUpstreamAuth) etc.
type StatusError struct {
	Kind        error
	Op          string
	StatusCode  int
	Code        string // OAuth "error" field, if any
	Description string // OAuth "error_description" field, if any
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		if e.Description != "" {
			return fmt.Sprintf("%s: %s failed with status %d: %s - %s", e.Kind, e.Op, e.StatusCode, e.Code, e.Description)
		}
		return fmt.Sprintf("%s: %s failed with status %d: %s", e.Kind, e.Op, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s: %s failed with status %d", e.Kind, e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// NewStatusError builds a StatusError of the given kind
func NewStatusError(kind error, op string, statusCode int) *StatusError {
	return &StatusError{Kind: kind, Op: op, StatusCode: statusCode}
}

// StatusCode returns the HTTP status carried by err, or 0 if there is none
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
