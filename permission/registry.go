package permission

import (
	"errors"
	"sync"
)

// ErrRegistryFull is returned when a bounded registry has assigned all of its bits.
var ErrRegistryFull = errors.New("permission registry full")

// Registry maps names to bit positions within a [Mask].
//
// Unlike a frozen role table, the registry grows as the backend introduces new module
// or privilege names; a name keeps its bit for the lifetime of the registry. It is safe
// for concurrent use.
type Registry struct {
	maxBits int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName []string
}

// NewRegistry creates a [Registry]. maxBits bounds the number of distinct names;
// zero means unbounded.
func NewRegistry(maxBits int) (*Registry, error) {
	if maxBits < 0 {
		return nil, errors.New("invalid maxBits")
	}

	return &Registry{
		maxBits:   maxBits,
		nameToBit: make(map[string]int),
	}, nil
}

// Intern returns the bit assigned to name, assigning the next free bit on first use.
func (r *Registry) Intern(name string) (int, error) {
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}

	r.mu.RLock()
	bit, ok := r.nameToBit[name]
	r.mu.RUnlock()
	if ok {
		return bit, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another goroutine may have interned it between the locks
	if bit, ok := r.nameToBit[name]; ok {
		return bit, nil
	}

	nextBit := len(r.bitToName)
	if r.maxBits > 0 && nextBit >= r.maxBits {
		return -1, ErrRegistryFull
	}

	r.nameToBit[name] = nextBit
	r.bitToName = append(r.bitToName, name)

	return nextBit, nil
}

// Bit returns the bit index for the named permission, or false if never interned.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.bitToName) {
		return "", false
	}
	return r.bitToName[bit], true
}

// Count returns the number of interned names.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bitToName)
}
