package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderErrorRetryable(t *testing.T) {
	cases := map[ProviderErrorKind]bool{
		ProviderNetworkError:  true,
		ProviderAuthExpired:   false,
		ProviderQuotaExceeded: false,
		ProviderNotFound:      false,
		ProviderGeneric:       false,
	}
	for kind, want := range cases {
		err := &ProviderError{Kind: kind, Provider: "test"}
		assert.Equal(t, want, err.Retryable(), "kind %s", kind)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ProviderError{Kind: ProviderNetworkError, Provider: "test", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("upload: %w", err), cause)
}

func TestProviderErrorKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ProviderError{Kind: ProviderQuotaExceeded})
	assert.Equal(t, ProviderQuotaExceeded, ProviderErrorKindOf(err))

	assert.Equal(t, ProviderGeneric, ProviderErrorKindOf(errors.New("plain")))
}

func TestSyncErrorMessageAndUnwrap(t *testing.T) {
	cause := &ProviderError{Kind: ProviderAuthExpired, Provider: "test"}
	err := &SyncError{Code: ErrCodeAuth, Phase: "upload", VaultID: "vault-1", Err: cause}

	assert.Contains(t, err.Error(), "upload")
	assert.Contains(t, err.Error(), ErrCodeAuth)
	assert.Contains(t, err.Error(), "vault-1")
	assert.ErrorIs(t, err, cause)
}

func TestTooManyAttemptsErrorMessage(t *testing.T) {
	err := &TooManyAttemptsError{VaultID: "vault-1", RetryAfter: 90 * time.Second}
	assert.Contains(t, err.Error(), "vault-1")
	assert.Contains(t, err.Error(), "1m30s")
}

func TestVaultSyncDataEqual(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	base := VaultSyncData{
		VaultID:          "vault-1",
		EncryptedPayload: []byte("blob"),
		Timestamp:        ts,
		DeviceID:         "device-a",
		Checksum:         "sum",
		Version:          1,
	}

	assert.True(t, base.Equal(base))

	// Equal timestamps in different locations still compare equal.
	shifted := base
	shifted.Timestamp = ts.In(time.FixedZone("X", 3600))
	assert.True(t, base.Equal(shifted))

	mutations := []func(*VaultSyncData){
		func(d *VaultSyncData) { d.VaultID = "other" },
		func(d *VaultSyncData) { d.EncryptedPayload = []byte("blob2") },
		func(d *VaultSyncData) { d.Timestamp = ts.Add(time.Second) },
		func(d *VaultSyncData) { d.DeviceID = "device-b" },
		func(d *VaultSyncData) { d.Checksum = "other" },
		func(d *VaultSyncData) { d.Version = 2 },
	}
	for i, mutate := range mutations {
		other := base
		mutate(&other)
		assert.False(t, base.Equal(other), "mutation %d", i)
	}
}

func TestVaultHeaderIsLegacy(t *testing.T) {
	h := &VaultHeader{VaultID: "vault-1"}
	assert.True(t, h.IsLegacy())

	h.KDFSalt = []byte("0123456789abcdef")
	assert.False(t, h.IsLegacy())
}

func TestVaultHeaderValidate(t *testing.T) {
	now := time.Now()
	valid := &VaultHeader{
		VaultID:      "vault-1",
		Version:      HeaderVersion,
		KDFAlgorithm: KDFArgon2id,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	assert.NoError(t, valid.Validate())

	broken := valid.Clone()
	broken.KDFAlgorithm = "scrypt"
	assert.Error(t, broken.Validate())

	broken = valid.Clone()
	broken.ModifiedAt = now.Add(-time.Hour)
	assert.Error(t, broken.Validate())
}

func TestVaultHeaderCloneIndependentSalt(t *testing.T) {
	h := &VaultHeader{VaultID: "vault-1", KDFSalt: []byte("0123456789abcdef")}
	clone := h.Clone()
	clone.KDFSalt[0] = 'x'

	assert.Equal(t, byte('0'), h.KDFSalt[0])
}

func TestSyncMetadataValidate(t *testing.T) {
	meta := NewSyncMetadata("vault-1")
	assert.NoError(t, meta.Validate())

	meta.Status = StatusConflict
	assert.Error(t, meta.Validate(), "conflict status requires the flag")
	meta.ConflictDetected = true
	assert.NoError(t, meta.Validate())

	meta.Status = "unknown"
	assert.Error(t, meta.Validate())

	assert.Error(t, (&SyncMetadata{Status: StatusSynced}).Validate(), "vault ID required")
}

func TestSyncMetadataErrorHandling(t *testing.T) {
	meta := NewSyncMetadata("vault-1")
	assert.False(t, meta.HasError())

	meta.SetError(errors.New("upload failed"))
	assert.Equal(t, StatusError, meta.Status)
	assert.True(t, meta.HasError())
	assert.Equal(t, "upload failed", meta.LastError)

	meta.ClearError()
	assert.False(t, meta.HasError())
}

func TestParseEntryPayload(t *testing.T) {
	payload, err := ParseEntryPayload([]byte(`{"entries":[{"id":"a"}]}`))
	require.NoError(t, err)
	assert.Len(t, payload.Entries, 1)

	_, err = ParseEntryPayload([]byte(`{"notes":"freeform"}`))
	assert.ErrorIs(t, err, ErrNotMergeable)

	_, err = ParseEntryPayload([]byte(`not json`))
	assert.Error(t, err)
}
