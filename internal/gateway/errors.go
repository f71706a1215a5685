package gateway

import (
	"errors"
	"fmt"
)

// Standard errors returned by the gateway client.
var (
	// ErrValidation indicates invalid input parameters.
	ErrValidation = errors.New("validation error")
	// ErrExpiredSession indicates the user's session is no longer valid.
	// Callers must never retry it; the journey routes to a session-expired
	// destination instead.
	ErrExpiredSession = errors.New("session expired")
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest indicates the gateway rejected the request body.
	ErrBadRequest = errors.New("bad request")
	// ErrServer indicates a gateway-side failure that may be retried at the
	// user's discretion.
	ErrServer = errors.New("server error")
)

// APIError represents an error response from the repository gateway.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Message is the error message returned by the gateway.
	Message string
	// Err is the underlying error type.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (status %d)", e.Err.Error(), e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError represents an input validation failure before any request
// is made.
type ValidationError struct {
	// Field is the name of the invalid field.
	Field string
	// Message describes what's wrong.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap returns ErrValidation for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// newAPIError creates an APIError from an HTTP status. Every call site can
// then distinguish at least {session expiry, other error, success} with
// errors.Is.
func newAPIError(statusCode int, message string) *APIError {
	err := &APIError{
		StatusCode: statusCode,
		Message:    message,
	}

	switch {
	case statusCode == 400:
		err.Err = ErrBadRequest
	case statusCode == 403:
		err.Err = ErrExpiredSession
	case statusCode == 404:
		err.Err = ErrNotFound
	case statusCode >= 500:
		err.Err = ErrServer
	}

	return err
}
