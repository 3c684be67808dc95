package session

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that an identity carries the fields a restored session needs.
func (i Identity) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSessionData, err)
	}
	return nil
}

// Validate checks that both bearer tokens are present.
func (t Tokens) Validate() error {
	if t.Access == "" || t.Refresh == "" {
		return fmt.Errorf("%w: both tokens are required", ErrInvalidSessionData)
	}
	return nil
}

// EncodeIdentity serializes an identity for storage.
func EncodeIdentity(i Identity) ([]byte, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(i)
}

// DecodeIdentity parses and validates a stored identity.
func DecodeIdentity(data []byte) (Identity, error) {
	var i Identity
	if err := json.Unmarshal(data, &i); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidSessionData, err)
	}
	if err := i.Validate(); err != nil {
		return Identity{}, err
	}
	return i, nil
}

// assemble turns raw stored values into a record. Presence flags distinguish a missing
// entry from an empty one.
func assemble(identity []byte, hasIdentity bool, access string, hasAccess bool, refresh string, hasRefresh bool) (Record, error) {
	if !hasIdentity && !hasAccess && !hasRefresh {
		return Record{}, ErrNotFound
	}
	if !hasIdentity || !hasAccess || !hasRefresh {
		return Record{}, fmt.Errorf("%w: incomplete record", ErrInvalidSessionData)
	}
	tokens := Tokens{Access: access, Refresh: refresh}
	if err := tokens.Validate(); err != nil {
		return Record{}, err
	}

	id, err := DecodeIdentity(identity)
	if err != nil {
		return Record{}, err
	}

	return Record{Identity: id, Tokens: tokens}, nil
}
