package state

import (
	"sync"

	"github.com/genvault/genvault/internal/models"
)

// MockStore provides an in-memory Store for testing.
type MockStore struct {
	mu    sync.RWMutex
	metas map[string]*models.SyncMetadata

	// FailSave makes Save return this error when set.
	FailSave error
}

// NewMockStore creates a mock metadata store.
func NewMockStore() *MockStore {
	return &MockStore{
		metas: make(map[string]*models.SyncMetadata),
	}
}

// Load loads metadata for a vault.
func (m *MockStore) Load(vaultID string) (*models.SyncMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if meta, ok := m.metas[vaultID]; ok {
		return meta.Clone(), nil
	}

	return nil, ErrStateNotFound
}

// Save saves metadata for a vault.
func (m *MockStore) Save(vaultID string, meta *models.SyncMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave != nil {
		return m.FailSave
	}

	m.metas[vaultID] = meta.Clone()
	return nil
}

// Reset removes metadata for a vault.
func (m *MockStore) Reset(vaultID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.metas, vaultID)
	return nil
}

// List returns all vault IDs with stored metadata.
func (m *MockStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var vaultIDs []string
	for vaultID := range m.metas {
		vaultIDs = append(vaultIDs, vaultID)
	}
	return vaultIDs, nil
}

// Close closes the store (no-op for mock).
func (m *MockStore) Close() error {
	return nil
}

// SaveMeta stores metadata directly (test setup).
func (m *MockStore) SaveMeta(vaultID string, meta *models.SyncMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas[vaultID] = meta
}
