package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable wraps transport failures (connection refused, timeout).
	ErrUnavailable = errors.New("backend unavailable")
	// ErrBackendStatus matches every [*StatusError].
	ErrBackendStatus = errors.New("backend status error")
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnrecognizedResponse matches every [*ShapeError].
	ErrUnrecognizedResponse = errors.New("unrecognized backend response")
	// ErrMissingTokens is returned when a login response lacks a token.
	ErrMissingTokens = errors.New("login response missing tokens")
	// ErrMissingUserFields is returned when a login response lacks the user id or role id.
	ErrMissingUserFields = errors.New("login response missing user fields")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: status %d %s", e.Endpoint, e.Code, http.StatusText(e.Code))
}

// Is matches [ErrBackendStatus].
func (e *StatusError) Is(target error) bool {
	return target == ErrBackendStatus
}

// ShapeError reports a response body that matches no known layout.
type ShapeError struct {
	Endpoint string
	Reason   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("backend %s: unrecognized response: %s", e.Endpoint, e.Reason)
}

// Is matches [ErrUnrecognizedResponse].
func (e *ShapeError) Is(target error) bool {
	return target == ErrUnrecognizedResponse
}
