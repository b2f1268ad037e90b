package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncStatus is the per-vault synchronization state.
type SyncStatus string

const (
	StatusNeverSynced SyncStatus = "never_synced"
	StatusSynced      SyncStatus = "synced"
	StatusSyncing     SyncStatus = "syncing"
	StatusPending     SyncStatus = "pending"
	StatusError       SyncStatus = "error"
	StatusConflict    SyncStatus = "conflict"
)

// SyncMetadata tracks where a vault stands relative to its cloud copy.
// Only the sync engine mutates it. Status is StatusConflict exactly while
// an unresolved Conflict exists for the vault.
type SyncMetadata struct {
	VaultID           string     `json:"vault_id"`
	Status            SyncStatus `json:"status"`
	LastSyncTimestamp time.Time  `json:"last_sync_timestamp"`
	CloudFileID       string     `json:"cloud_file_id,omitempty"`
	CloudModifiedTime time.Time  `json:"cloud_modified_time"`
	LocalModifiedTime time.Time  `json:"local_modified_time"`
	ConflictDetected  bool       `json:"conflict_detected"`
	PendingChanges    bool       `json:"pending_changes"`
	LastError         string     `json:"last_error,omitempty"`
}

// NewSyncMetadata creates metadata for a vault that has never synced.
func NewSyncMetadata(vaultID string) *SyncMetadata {
	return &SyncMetadata{
		VaultID: vaultID,
		Status:  StatusNeverSynced,
	}
}

// SetError records a failure without touching the sync position.
func (m *SyncMetadata) SetError(err error) {
	m.Status = StatusError
	if err != nil {
		m.LastError = err.Error()
	}
}

// ClearError clears the last error message.
func (m *SyncMetadata) ClearError() {
	m.LastError = ""
}

// HasError returns true if there's a stored error.
func (m *SyncMetadata) HasError() bool {
	return strings.TrimSpace(m.LastError) != ""
}

// Validate validates the metadata structure.
func (m *SyncMetadata) Validate() error {
	if strings.TrimSpace(m.VaultID) == "" {
		return fmt.Errorf("vault ID is required")
	}

	switch m.Status {
	case StatusNeverSynced, StatusSynced, StatusSyncing, StatusPending, StatusError, StatusConflict:
	default:
		return fmt.Errorf("unknown sync status: %s", m.Status)
	}

	if m.Status == StatusConflict && !m.ConflictDetected {
		return fmt.Errorf("conflict status requires conflict_detected")
	}

	return nil
}

// Clone creates a copy of the metadata.
func (m *SyncMetadata) Clone() *SyncMetadata {
	clone := *m
	return &clone
}
