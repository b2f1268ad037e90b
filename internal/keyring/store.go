// Package keyring stores TTL-wrapped vault key material in a platform
// secret store, so users can skip master-password entry for a bounded
// window.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SecretStore is the platform secret-store collaborator: an opaque
// key-value blob store keyed by vault ID. Only envelope blobs ever go in;
// never a raw key or password.
type SecretStore interface {
	Put(key string, blob []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// ErrSecretNotFound is returned by Get when no blob exists for the key.
var ErrSecretNotFound = errors.New("secret not found")

// FileStore is a file-per-secret store, the fallback on platforms without
// a native keychain binding. Files are 0600 under a 0700 directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed secret store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create secret store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Put(key string, blob []byte) error {
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename secret: %w", err)
	}
	return nil
}

func (s *FileStore) Get(key string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	return blob, nil
}

func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	// Keys are vault IDs plus fixed suffixes; strip anything path-like.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+".cred")
}

// MemStore is an in-memory SecretStore for tests.
type MemStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failPut bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) Put(key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return fmt.Errorf("store unavailable")
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.blobs[key] = cp
	return nil
}

func (s *MemStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return blob, nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Contains reports whether a blob exists (test helper).
func (s *MemStore) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok
}

// FailPuts makes subsequent Put calls fail (test helper).
func (s *MemStore) FailPuts(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = fail
}
