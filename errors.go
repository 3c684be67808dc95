package gymauth

import (
	"errors"

	"github.com/ironhall/gymauth/authsession"
	"github.com/ironhall/gymauth/backend"
	"github.com/ironhall/gymauth/permcache"
	"github.com/ironhall/gymauth/roles"
	"github.com/ironhall/gymauth/session"
)

var (
	// ErrRoleDirectoryUnavailable is the non-fatal warning returned when the fallback role
	// catalog was substituted.
	ErrRoleDirectoryUnavailable = roles.ErrUnavailable
	// ErrRoleNotFound reports a role id absent from the catalog.
	ErrRoleNotFound = roles.ErrRoleNotFound
	// ErrAuthorizationFetch reports a failed permission fetch.
	ErrAuthorizationFetch = permcache.ErrAuthorizationFetch
	// ErrInvalidSessionData reports a partial or corrupt persisted session.
	ErrInvalidSessionData = session.ErrInvalidSessionData
	// ErrStoreUnavailable reports a session store that could not be reached.
	ErrStoreUnavailable = session.ErrStoreUnavailable
	// ErrLogin is matched by every [LoginError].
	ErrLogin = authsession.ErrLogin
	// ErrUnrecognizedResponse reports a backend payload in no accepted layout.
	ErrUnrecognizedResponse = backend.ErrUnrecognizedResponse
	// ErrBackendStatus reports a non-2xx backend response.
	ErrBackendStatus = backend.ErrBackendStatus

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
	// ErrNotAuthenticated is returned by operations that need a logged-in session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// LoginError describes why a login was rejected.
type LoginError = authsession.LoginError

// LoginReason classifies a [LoginError].
type LoginReason = authsession.Reason

// StatusError carries the HTTP status of a failed backend call.
type StatusError = backend.StatusError
