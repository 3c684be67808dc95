package roles

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnavailable is the warning returned alongside the fallback catalog.
	ErrUnavailable = errors.New("role directory unavailable")
	// ErrRoleNotFound is returned when a role id is absent from the current catalog.
	ErrRoleNotFound = errors.New("role not found")
	// ErrMalformedCatalog marks a catalog with invalid entries.
	ErrMalformedCatalog = errors.New("malformed role catalog")
)

// Provenance records where a role entry came from.
type Provenance uint8

const (
	// SourceOfTruth roles were returned by the backend.
	SourceOfTruth Provenance = iota
	// Fallback roles come from the built-in table used when the backend is unusable.
	Fallback
)

func (p Provenance) String() string {
	switch p {
	case SourceOfTruth:
		return "source-of-truth"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("provenance(%d)", uint8(p))
	}
}

// Role is one catalog entry. Route may be empty.
type Role struct {
	ID         int64      `json:"id" validate:"gt=0"`
	Name       string     `json:"name" validate:"required"`
	Route      string     `json:"route,omitempty"`
	Provenance Provenance `json:"-"`
}

// FallbackRoles is the built-in catalog substituted when the backend cannot be used.
var FallbackRoles = []Role{
	{ID: 1, Name: "Admin", Route: "/dashboard"},
	{ID: 2, Name: "Receptionist", Route: "/clients"},
	{ID: 3, Name: "Trainer", Route: "/schedule"},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateRoles(list []Role) error {
	if len(list) == 0 {
		return fmt.Errorf("%w: empty catalog", ErrMalformedCatalog)
	}
	for i := range list {
		if err := validate.Struct(list[i]); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrMalformedCatalog, i, err)
		}
	}
	return nil
}
