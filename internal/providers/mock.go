package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genvault/genvault/internal/models"
)

// MockProvider is an in-memory Provider for tests with scriptable
// failures.
type MockProvider struct {
	mu sync.Mutex

	files    map[string]models.VaultSyncData // fileID -> data
	byVault  map[string]string               // vaultID -> fileID
	modified map[string]time.Time            // fileID -> modified time
	revision int

	authenticated bool

	// Scripted errors, consumed in order per operation.
	uploadErrs   []error
	downloadErrs []error
	listErrs     []error
	deleteErrs   []error

	// Call counters.
	UploadCalls   int
	DownloadCalls int
	ListCalls     int
	DeleteCalls   int
}

// NewMockProvider creates an authenticated mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		files:         make(map[string]models.VaultSyncData),
		byVault:       make(map[string]string),
		modified:      make(map[string]time.Time),
		authenticated: true,
	}
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// SetAuthenticated toggles the authentication state.
func (m *MockProvider) SetAuthenticated(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticated = ok
}

// IsAuthenticated implements Provider.
func (m *MockProvider) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// FailNextUpload queues errors returned by subsequent uploads.
func (m *MockProvider) FailNextUpload(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrs = append(m.uploadErrs, errs...)
}

// FailNextDownload queues errors returned by subsequent downloads.
func (m *MockProvider) FailNextDownload(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrs = append(m.downloadErrs, errs...)
}

// FailNextList queues errors returned by subsequent lists.
func (m *MockProvider) FailNextList(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErrs = append(m.listErrs, errs...)
}

// FailNextDelete queues errors returned by subsequent deletes.
func (m *MockProvider) FailNextDelete(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErrs = append(m.deleteErrs, errs...)
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// UploadVault implements Provider.
func (m *MockProvider) UploadVault(ctx context.Context, data models.VaultSyncData) (*UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UploadCalls++
	if err := popErr(&m.uploadErrs); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileID, ok := m.byVault[data.VaultID]
	if !ok {
		fileID = fmt.Sprintf("file-%s", data.VaultID)
		m.byVault[data.VaultID] = fileID
	}

	m.revision++
	m.files[fileID] = data
	m.modified[fileID] = data.Timestamp

	return &UploadResult{
		FileID:       fileID,
		Revision:     fmt.Sprintf("rev-%d", m.revision),
		ModifiedTime: m.modified[fileID],
	}, nil
}

// DownloadVault implements Provider.
func (m *MockProvider) DownloadVault(ctx context.Context, fileID string) (*models.VaultSyncData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadCalls++
	if err := popErr(&m.downloadErrs); err != nil {
		return nil, err
	}

	data, ok := m.files[fileID]
	if !ok {
		return nil, &models.ProviderError{
			Kind:     models.ProviderNotFound,
			Provider: "mock",
			Message:  "no such file: " + fileID,
		}
	}

	cp := data
	return &cp, nil
}

// ListVaults implements Provider.
func (m *MockProvider) ListVaults(ctx context.Context) ([]Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++
	if err := popErr(&m.listErrs); err != nil {
		return nil, err
	}

	var list []Metadata
	for fileID, data := range m.files {
		list = append(list, Metadata{
			FileID:       fileID,
			VaultID:      data.VaultID,
			ModifiedTime: m.modified[fileID],
			Size:         int64(len(data.EncryptedPayload)),
		})
	}
	return list, nil
}

// DeleteVault implements Provider.
func (m *MockProvider) DeleteVault(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if err := popErr(&m.deleteErrs); err != nil {
		return err
	}

	data, ok := m.files[fileID]
	if !ok {
		return &models.ProviderError{
			Kind:     models.ProviderNotFound,
			Provider: "mock",
			Message:  "no such file: " + fileID,
		}
	}

	delete(m.files, fileID)
	delete(m.modified, fileID)
	delete(m.byVault, data.VaultID)
	return nil
}

// SeedVault stores data directly (test setup) and returns its file ID.
func (m *MockProvider) SeedVault(data models.VaultSyncData) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileID := fmt.Sprintf("file-%s", data.VaultID)
	m.byVault[data.VaultID] = fileID
	m.files[fileID] = data
	m.modified[fileID] = data.Timestamp
	return fileID
}

// SetModified overrides the listed modified time for a file (test setup).
func (m *MockProvider) SetModified(fileID string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modified[fileID] = t
}

// Stored returns the stored data for a vault ID (test helper).
func (m *MockProvider) Stored(vaultID string) (models.VaultSyncData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileID, ok := m.byVault[vaultID]
	if !ok {
		return models.VaultSyncData{}, false
	}
	data, ok := m.files[fileID]
	return data, ok
}
