package permission

import (
	"errors"
	"strings"
)

// ErrInvalidGrant is returned when a grant is missing its module or privilege name.
var ErrInvalidGrant = errors.New("invalid grant")

// grantSeparator cannot appear in module or privilege names coming from the backend.
const grantSeparator = "\x1f"

// Grant is an authorized (module, privilege) pair for the active role.
type Grant struct {
	Module    string `json:"module"`
	Privilege string `json:"privilege"`
}

// Key returns the interning key of the grant.
func (g Grant) Key() string {
	return GrantKey(g.Module, g.Privilege)
}

// Validate reports whether the grant names both a module and a privilege.
func (g Grant) Validate() error {
	if strings.TrimSpace(g.Module) == "" || strings.TrimSpace(g.Privilege) == "" {
		return ErrInvalidGrant
	}
	if strings.Contains(g.Module, grantSeparator) || strings.Contains(g.Privilege, grantSeparator) {
		return ErrInvalidGrant
	}
	return nil
}

func (g Grant) String() string {
	return g.Module + ":" + g.Privilege
}

// GrantKey builds the interning key for a (module, privilege) pair.
func GrantKey(module, privilege string) string {
	return module + grantSeparator + privilege
}

// SplitGrantKey is the inverse of [GrantKey].
func SplitGrantKey(key string) (Grant, bool) {
	module, privilege, ok := strings.Cut(key, grantSeparator)
	if !ok {
		return Grant{}, false
	}
	return Grant{Module: module, Privilege: privilege}, true
}

// Payload is the permission set the backend reports for one role.
type Payload struct {
	AccessibleModules []string
	Grants            []Grant
}

// Validate checks every module name and grant in the payload.
func (p Payload) Validate() error {
	for _, m := range p.AccessibleModules {
		if strings.TrimSpace(m) == "" {
			return errors.New("accessible module name empty")
		}
	}
	for _, g := range p.Grants {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GrantKeys returns the interning keys of all grants in the payload.
func (p Payload) GrantKeys() []string {
	keys := make([]string, 0, len(p.Grants))
	for _, g := range p.Grants {
		keys = append(keys, g.Key())
	}
	return keys
}
