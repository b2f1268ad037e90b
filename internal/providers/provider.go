// Package providers defines the cloud storage contract and its two
// concrete implementations. Providers move opaque encrypted blobs; vault
// plaintext never crosses this boundary.
package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/genvault/genvault/internal/models"
)

// Metadata describes a stored vault file without its payload. Listing
// metadata is the cheap call sync uses for change detection.
type Metadata struct {
	FileID       string    `json:"file_id"`
	VaultID      string    `json:"vault_id"`
	ModifiedTime time.Time `json:"modified_time"`
	Size         int64     `json:"size"`
	Revision     string    `json:"revision"`
}

// UploadResult identifies the stored file after an upload. ModifiedTime is
// the server-side stamp of the stored copy; change detection baselines the
// next listing comparison on it.
type UploadResult struct {
	FileID       string    `json:"file_id"`
	Revision     string    `json:"revision"`
	ModifiedTime time.Time `json:"modified_time"`
}

// Provider is the uniform cloud storage contract. Implementations map
// their native failures into the models.ProviderError taxonomy.
type Provider interface {
	// Name identifies the provider for logs and the registry.
	Name() string

	// IsAuthenticated reports whether calls can be attempted.
	IsAuthenticated(ctx context.Context) bool

	// UploadVault stores an encrypted vault, overwriting any previous
	// version for the same vault ID.
	UploadVault(ctx context.Context, data models.VaultSyncData) (*UploadResult, error)

	// DownloadVault retrieves a stored vault by file ID.
	DownloadVault(ctx context.Context, fileID string) (*models.VaultSyncData, error)

	// ListVaults returns metadata for every stored vault.
	ListVaults(ctx context.Context) ([]Metadata, error)

	// DeleteVault removes a stored vault by file ID.
	DeleteVault(ctx context.Context, fileID string) error
}

// Registry holds the configured providers. It is an explicit object passed
// to whoever dispatches on provider name; there is no package-level
// registry. The set of providers is a deliberate, bounded decision made at
// construction time.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry over a fixed set of providers.
func NewRegistry(provs ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(provs))}
	for _, p := range provs {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
