package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no session is persisted.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidSessionData is returned when persisted data is partial or fails validation.
	ErrInvalidSessionData = errors.New("invalid session data")
	// ErrStoreUnavailable wraps failures of the underlying storage.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

const (
	keyIdentity     = "identity"
	keyAccessToken  = "accessToken"
	keyRefreshToken = "refreshToken"
)

// Store persists one session.
//
// Tokens are saved on their own so they are available to authenticated calls made
// before the identity is confirmed. Load returns [ErrNotFound] when nothing is stored
// and [ErrInvalidSessionData] for partial or corrupt state. Wipe is idempotent.
type Store interface {
	SaveTokens(ctx context.Context, tokens Tokens) error
	SaveIdentity(ctx context.Context, identity Identity) error
	Load(ctx context.Context) (Record, error)
	Wipe(ctx context.Context) error
}
