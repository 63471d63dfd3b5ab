package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrInvalidCredentials is returned when login is refused (400 or 401).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated matches an *APIError carrying a 401, so callers can
	// test errors.Is(err, ErrNotAuthenticated) on any wrapped API rejection.
	// Nothing returns it directly.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError is a non-2xx answer from the API that the caller has to interpret.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int
	// Message is the server's explanation, if it sent one.
	Message string
}

// Error returns the error message.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets a 401 match ErrNotAuthenticated.
func (e *APIError) Is(target error) bool {
	return target == ErrNotAuthenticated && e.StatusCode == http.StatusUnauthorized
}
