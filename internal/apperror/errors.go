// Package apperror provides domain-specific error types for chatboard.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to appropriate HTTP responses automatically.
//
// Services never return raw store errors to handlers. They wrap them in an
// apperror type: NewInfrastructure for store failures (the only kind that
// echoes lower-level detail to the client), NewInternal for everything else.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 404, 400, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "rate_limited").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Details echoes the lower-level error text for infrastructure failures.
	// Rendered as the "details" field of the JSON error body.
	Details string `json:"details,omitempty"`

	// RetryAfter is the number of seconds a rejected client should wait.
	// Zero means no Retry-After header is sent.
	RetryAfter int `json:"-"`

	// Internal holds the underlying error for logging.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithRetryAfter sets the Retry-After hint in whole seconds, rounding up so
// a client never retries early.
func (e *AppError) WithRetryAfter(seconds float64) *AppError {
	s := int(seconds)
	if float64(s) < seconds {
		s++
	}
	e.RetryAfter = s
	return e
}

// --- Constructors for common error types ---

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Type:    "not_found",
		Message: message,
	}
}

// NewBadRequest creates a 400 Bad Request error. Used for missing or
// oversized input.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "bad_request",
		Message: message,
	}
}

// NewForbidden creates a 403 Forbidden error. Returned while a client's ban
// is active.
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    "forbidden",
		Message: message,
	}
}

// NewMethodNotAllowed creates a 405 Method Not Allowed error.
func NewMethodNotAllowed(message string) *AppError {
	return &AppError{
		Code:    http.StatusMethodNotAllowed,
		Type:    "method_not_allowed",
		Message: message,
	}
}

// NewTooManyRequests creates a 429 Too Many Requests error. Returned for the
// request that saturates a client's window and activates its ban.
func NewTooManyRequests(message string) *AppError {
	return &AppError{
		Code:    http.StatusTooManyRequests,
		Type:    "rate_limited",
		Message: message,
	}
}

// NewInfrastructure creates a 500 error for a failed store read or write.
// Unlike NewInternal, the underlying error text is surfaced in Details.
func NewInfrastructure(message string, err error) *AppError {
	appErr := &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "infrastructure_error",
		Message:  message,
		Internal: err,
	}
	if err != nil {
		appErr.Details = rootMessage(err)
	}
	return appErr
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// rootMessage returns the text of the innermost wrapped error, which is the
// store client's own message rather than our wrapping context.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
