package models

import (
	"bytes"
	"time"
)

// VaultSyncData is the unit exchanged with cloud storage: an encrypted
// payload plus the metadata sync decisions are made on. Instances are
// immutable once constructed.
type VaultSyncData struct {
	VaultID          string    `json:"vault_id"`
	EncryptedPayload []byte    `json:"encrypted_payload"`
	Timestamp        time.Time `json:"timestamp"`
	DeviceID         string    `json:"device_id"`
	Checksum         string    `json:"checksum"`
	Version          int       `json:"version"`
}

// Equal reports field-wise equality, including payload bytes.
func (d VaultSyncData) Equal(other VaultSyncData) bool {
	return d.VaultID == other.VaultID &&
		bytes.Equal(d.EncryptedPayload, other.EncryptedPayload) &&
		d.Timestamp.Equal(other.Timestamp) &&
		d.DeviceID == other.DeviceID &&
		d.Checksum == other.Checksum &&
		d.Version == other.Version
}

// Conflict pairs the two divergent versions of a vault. It exists from the
// moment divergence is detected until a winner is committed.
type Conflict struct {
	Local  VaultSyncData `json:"local"`
	Remote VaultSyncData `json:"remote"`
}
