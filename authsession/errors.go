package authsession

import (
	"errors"
	"fmt"
)

// ErrLogin matches every [*LoginError].
var ErrLogin = errors.New("login failed")

// Reason classifies a login failure.
type Reason uint8

const (
	ReasonInvalidCredentials Reason = iota + 1
	ReasonMissingTokens
	ReasonMissingUserFields
	ReasonUnrecognizedResponse
	ReasonRoleNotFound
	ReasonFallbackRole
	ReasonPermissionsUnavailable
	ReasonBackendUnavailable
	ReasonStorage
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidCredentials:
		return "invalid_credentials"
	case ReasonMissingTokens:
		return "missing_tokens"
	case ReasonMissingUserFields:
		return "missing_user_fields"
	case ReasonUnrecognizedResponse:
		return "unrecognized_response"
	case ReasonRoleNotFound:
		return "role_not_found"
	case ReasonFallbackRole:
		return "fallback_role"
	case ReasonPermissionsUnavailable:
		return "permissions_unavailable"
	case ReasonBackendUnavailable:
		return "backend_unavailable"
	case ReasonStorage:
		return "storage"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Message returns text suitable for showing to the person logging in.
func (r Reason) Message() string {
	switch r {
	case ReasonInvalidCredentials:
		return "Incorrect email or password."
	case ReasonMissingTokens:
		return "The server did not start a session. Please try again."
	case ReasonMissingUserFields:
		return "Your account is incomplete. Contact an administrator."
	case ReasonUnrecognizedResponse:
		return "The server returned an unexpected response."
	case ReasonRoleNotFound:
		return "Your role is not recognized. Contact an administrator."
	case ReasonFallbackRole:
		return "Roles cannot be verified right now. Please try again later."
	case ReasonPermissionsUnavailable:
		return "Your permissions could not be loaded. Please try again."
	case ReasonBackendUnavailable:
		return "The server is unreachable. Please try again later."
	case ReasonStorage:
		return "The session could not be saved on this device."
	default:
		return "Login failed."
	}
}

// LoginError is returned by [Session.Login].
type LoginError struct {
	Reason  Reason
	Message string
	Err     error
}

func newLoginError(reason Reason, err error) *LoginError {
	return &LoginError{Reason: reason, Message: reason.Message(), Err: err}
}

func (e *LoginError) Error() string {
	if e.Err == nil {
		return "login failed: " + e.Reason.String()
	}
	return "login failed: " + e.Reason.String() + ": " + e.Err.Error()
}

// Unwrap exposes both [ErrLogin] and the cause to errors.Is and errors.As.
func (e *LoginError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLogin}
	}
	return []error{ErrLogin, e.Err}
}
