// Package errors provides typed errors for the tutorchat backend client.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotLoggedIn          = errors.New("not logged in")
	ErrSessionExpired       = errors.New("session expired")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message cannot be empty")
)

// AuthError represents an authentication failure (missing, invalid or
// expired token). StatusCode is 0 when no request was attempted.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed: session may have expired"
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Is allows comparison with the auth sentinels.
func (e *AuthError) Is(target error) bool {
	if target == ErrSessionExpired || target == ErrNotLoggedIn {
		return true
	}
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError
func NewAuthError(statusCode int, message string) *AuthError {
	return &AuthError{StatusCode: statusCode, Message: message}
}

// APIError represents a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{StatusCode: statusCode, Endpoint: endpoint, Message: message}
}

// NetworkError represents a transport-level failure (connection refused,
// DNS, broken pipe). The request may never have reached the backend.
type NetworkError struct {
	Endpoint string
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error at %s: %v", e.Endpoint, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// NewNetworkError creates a new NetworkError
func NewNetworkError(endpoint string, cause error) *NetworkError {
	return &NetworkError{Endpoint: endpoint, Cause: cause}
}

// TimeoutError represents a request that exceeded the client deadline.
type TimeoutError struct {
	Endpoint string
}

func (e *TimeoutError) Error() string {
	if e.Endpoint == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request to %s timed out", e.Endpoint)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(endpoint string) *TimeoutError {
	return &TimeoutError{Endpoint: endpoint}
}

// ParseError represents an unexpected response body.
type ParseError struct {
	Message string
	Path    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// NewParseError creates a new ParseError
func NewParseError(message, path string) *ParseError {
	return &ParseError{Message: message, Path: path}
}

// IsAuthError reports whether err is an authentication failure. Callers use
// this to show re-login copy instead of a generic failure notice.
func IsAuthError(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	return errors.Is(err, ErrNotLoggedIn) || errors.Is(err, ErrSessionExpired)
}

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// IsNotFound reports whether err is a missing-conversation failure.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrConversationNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// HTTPStatus extracts the HTTP status carried by err, or 0 when the error
// has no status attached.
func HTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode
	}
	return 0
}
