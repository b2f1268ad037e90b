package models

import (
	"fmt"
	"strings"
	"time"
)

// HeaderVersion is the current vault header format version.
const HeaderVersion = 2

// KDFAlgorithm identifies the key derivation scheme of a vault.
type KDFAlgorithm string

const (
	KDFArgon2id KDFAlgorithm = "argon2id"
)

// KDFParams are the tuning parameters recorded in a vault header.
// They are versioned with the header so historical vaults stay openable
// when defaults change.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
	KeyLen    uint32 `json:"key_len"`
}

// VaultHeader describes a vault without exposing any secret material.
// A header whose KDFSalt is empty is a legacy vault and must be migrated
// on the next successful unlock.
type VaultHeader struct {
	VaultID      string       `json:"vault_id"`
	Version      int          `json:"version"`
	KDFAlgorithm KDFAlgorithm `json:"kdf_algorithm"`
	KDFSalt      []byte       `json:"kdf_salt,omitempty"`
	KDFParams    KDFParams    `json:"kdf_params"`
	CreatedAt    time.Time    `json:"created_at"`
	ModifiedAt   time.Time    `json:"modified_at"`
	Checksum     string       `json:"checksum,omitempty"`
}

// IsLegacy reports whether the header predates random per-vault salts.
func (h *VaultHeader) IsLegacy() bool {
	return len(h.KDFSalt) == 0
}

// Validate validates the header structure.
func (h *VaultHeader) Validate() error {
	if strings.TrimSpace(h.VaultID) == "" {
		return fmt.Errorf("vault ID is required")
	}

	if h.Version < 1 {
		return fmt.Errorf("header version must be >= 1")
	}

	switch h.KDFAlgorithm {
	case KDFArgon2id:
	default:
		return fmt.Errorf("unsupported KDF algorithm: %s", h.KDFAlgorithm)
	}

	if h.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp is required")
	}

	if h.ModifiedAt.Before(h.CreatedAt) {
		return fmt.Errorf("modified_at cannot be before created_at")
	}

	return nil
}

// Clone returns a deep copy of the header.
func (h *VaultHeader) Clone() *VaultHeader {
	clone := *h
	if h.KDFSalt != nil {
		clone.KDFSalt = make([]byte, len(h.KDFSalt))
		copy(clone.KDFSalt, h.KDFSalt)
	}
	return &clone
}
