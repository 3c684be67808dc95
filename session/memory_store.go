package session

import (
	"context"
	"sync"
)

// MemoryStore is a process-local [Store]. Entries are kept in their encoded form so
// corruption can be simulated with [MemoryStore.Put].
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// SaveTokens stores both tokens. Either one missing is rejected.
func (s *MemoryStore) SaveTokens(_ context.Context, tokens Tokens) error {
	if err := tokens.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[keyAccessToken] = []byte(tokens.Access)
	s.entries[keyRefreshToken] = []byte(tokens.Refresh)
	return nil
}

// SaveIdentity stores the identity record.
func (s *MemoryStore) SaveIdentity(_ context.Context, identity Identity) error {
	data, err := EncodeIdentity(identity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[keyIdentity] = data
	return nil
}

// Load returns the stored record.
func (s *MemoryStore) Load(_ context.Context) (Record, error) {
	s.mu.Lock()
	identity, hasIdentity := s.entries[keyIdentity]
	access, hasAccess := s.entries[keyAccessToken]
	refresh, hasRefresh := s.entries[keyRefreshToken]
	s.mu.Unlock()

	return assemble(identity, hasIdentity, string(access), hasAccess, string(refresh), hasRefresh)
}

// Wipe removes every entry.
func (s *MemoryStore) Wipe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return nil
}

// Put stores a raw entry under one of the identity, accessToken or refreshToken keys.
func (s *MemoryStore) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
