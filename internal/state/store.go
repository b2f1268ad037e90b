// Package state persists per-vault sync metadata.
package state

import (
	"errors"
	"time"

	"github.com/genvault/genvault/internal/models"
)

// Store manages sync metadata persistence.
type Store interface {
	// Load retrieves the sync metadata for a vault.
	Load(vaultID string) (*models.SyncMetadata, error)

	// Save persists the sync metadata for a vault.
	Save(vaultID string, meta *models.SyncMetadata) error

	// Reset removes all metadata for a vault.
	Reset(vaultID string) error

	// List returns all known vault IDs.
	List() ([]string, error)

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrStateNotFound = errors.New("sync metadata not found")
	ErrStateCorrupt  = errors.New("sync metadata file is corrupt")
)

// record wraps the metadata with store bookkeeping.
type record struct {
	*models.SyncMetadata

	SchemaVersion int       `json:"schema_version"`
	SavedAt       time.Time `json:"saved_at"`
	Checksum      string    `json:"checksum,omitempty"`
}

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1
