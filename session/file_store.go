package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a [Store] backed by a single JSON document on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a [FileStore] at path. The parent directory is created on first
// write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionData, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *FileStore) update(fn func(doc map[string]json.RawMessage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if errors.Is(err, ErrInvalidSessionData) {
		// corrupt documents are overwritten
		doc, err = map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func setString(doc map[string]json.RawMessage, key, value string) {
	if value == "" {
		delete(doc, key)
		return
	}
	raw, _ := json.Marshal(value)
	doc[key] = raw
}

// SaveTokens writes both tokens. Either one missing is rejected.
func (s *FileStore) SaveTokens(_ context.Context, tokens Tokens) error {
	if err := tokens.Validate(); err != nil {
		return err
	}
	return s.update(func(doc map[string]json.RawMessage) error {
		setString(doc, keyAccessToken, tokens.Access)
		setString(doc, keyRefreshToken, tokens.Refresh)
		return nil
	})
}

// SaveIdentity writes the identity record.
func (s *FileStore) SaveIdentity(_ context.Context, identity Identity) error {
	data, err := EncodeIdentity(identity)
	if err != nil {
		return err
	}
	return s.update(func(doc map[string]json.RawMessage) error {
		doc[keyIdentity] = data
		return nil
	})
}

// Load reads the document.
func (s *FileStore) Load(_ context.Context) (Record, error) {
	s.mu.Lock()
	doc, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return Record{}, err
	}

	identity, hasIdentity := doc[keyIdentity]
	access, hasAccess, err := rawString(doc, keyAccessToken)
	if err != nil {
		return Record{}, err
	}
	refresh, hasRefresh, err := rawString(doc, keyRefreshToken)
	if err != nil {
		return Record{}, err
	}

	return assemble(identity, hasIdentity, access, hasAccess, refresh, hasRefresh)
}

func rawString(doc map[string]json.RawMessage, key string) (string, bool, error) {
	raw, ok := doc[key]
	if !ok {
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", true, fmt.Errorf("%w: %s: %v", ErrInvalidSessionData, key, err)
	}
	return v, true, nil
}

// Wipe removes the document.
func (s *FileStore) Wipe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
