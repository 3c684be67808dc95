package permission

import "sort"

// Set is an immutable set of interned names. The zero value is an empty set that
// contains nothing.
type Set struct {
	registry *Registry
	mask     Mask
}

// BuildSet interns every key in registry and returns the resulting set. Duplicate keys
// collapse; order is irrelevant.
func BuildSet(registry *Registry, keys []string) (Set, error) {
	s := Set{registry: registry}
	for _, key := range keys {
		bit, err := registry.Intern(key)
		if err != nil {
			return Set{}, err
		}
		s.mask.Set(bit)
	}
	return s, nil
}

// Contains reports whether key is a member. Names never interned are never members.
func (s Set) Contains(key string) bool {
	if s.registry == nil {
		return false
	}
	bit, ok := s.registry.Bit(key)
	if !ok {
		return false
	}
	return s.mask.Has(bit)
}

// Len returns the number of members.
func (s Set) Len() int {
	return s.mask.Count()
}

// Equal reports whether both sets hold the same members. Sets built from different
// registries are compared by name.
func (s Set) Equal(other Set) bool {
	if s.registry == other.registry {
		return s.mask.Equal(&other.mask)
	}
	return s.Len() == other.Len() && s.EqualKeys(other.Keys())
}

// EqualKeys reports whether keys, taken as an unordered set, equals s. It never interns
// anything, so it is safe for read-only comparisons against server data.
func (s Set) EqualKeys(keys []string) bool {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if !s.Contains(key) {
			return false
		}
		seen[key] = struct{}{}
	}
	return len(seen) == s.Len()
}

// Keys returns the members sorted lexicographically.
func (s Set) Keys() []string {
	if s.registry == nil {
		return []string{}
	}
	out := make([]string, 0, s.Len())
	for _, bit := range s.mask.Bits() {
		if name, ok := s.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
