package crypto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

func fastEngine() *Engine {
	e := NewEngine(events.Nop())
	e.params = fastParams
	return e
}

func TestEngineCreateUnlockRoundTrip(t *testing.T) {
	e := fastEngine()
	ctx := context.Background()

	created, err := e.CreateVault(ctx, "master password")
	require.NoError(t, err)
	require.NotNil(t, created.Header)
	assert.NotEmpty(t, created.Header.VaultID)
	assert.Len(t, created.Header.KDFSalt, SaltSize)
	assert.False(t, created.Header.IsLegacy())
	assert.True(t, VerifyPassword(created.PasswordHash, "master password"))

	res, err := e.UnlockVault(ctx, "master password", created.Header, created.WrappedKey)
	require.NoError(t, err)
	assert.Len(t, res.Key, KeySize)
	assert.False(t, res.Migrated)
	assert.Nil(t, res.UpdatedHeader)
}

func TestEngineUnlockWrongPassword(t *testing.T) {
	e := fastEngine()
	ctx := context.Background()

	created, err := e.CreateVault(ctx, "right")
	require.NoError(t, err)

	_, err = e.UnlockVault(ctx, "wrong", created.Header, created.WrappedKey)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

// legacyVault builds a pre-migration vault: no stored salt, DEK wrapped
// under a KEK derived from the deterministic SHA256(vaultID) salt.
func legacyVault(t *testing.T, vaultID, password string) (*models.VaultHeader, []byte, []byte) {
	t.Helper()

	kek, err := DeriveKey(password, legacySalt(vaultID), fastParams)
	require.NoError(t, err)

	dek, err := GenerateKey()
	require.NoError(t, err)

	wrapped, err := Seal(dek, kek)
	require.NoError(t, err)

	now := time.Now().UTC()
	header := &models.VaultHeader{
		VaultID:      vaultID,
		Version:      1,
		KDFAlgorithm: models.KDFArgon2id,
		KDFParams:    fastParams,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	return header, wrapped, dek
}

func TestEngineLegacyMigration(t *testing.T) {
	e := fastEngine()
	ctx := context.Background()

	header, wrapped, dek := legacyVault(t, "vault-legacy", "password")
	require.True(t, header.IsLegacy())

	res, err := e.UnlockVault(ctx, "password", header, wrapped)
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.Equal(t, dek, res.Key)
	require.NotNil(t, res.UpdatedHeader)
	assert.Len(t, res.UpdatedHeader.KDFSalt, SaltSize)
	assert.False(t, res.UpdatedHeader.IsLegacy())
	assert.NotNil(t, res.UpdatedWrappedKey)

	// A second unlock against the migrated header is a plain unlock.
	res2, err := e.UnlockVault(ctx, "password", res.UpdatedHeader, res.UpdatedWrappedKey)
	require.NoError(t, err)
	assert.False(t, res2.Migrated)
	assert.Equal(t, dek, res2.Key)
}

func TestEngineLegacyUnlockWrongPasswordNoMigration(t *testing.T) {
	e := fastEngine()

	header, wrapped, _ := legacyVault(t, "vault-legacy", "password")

	res, err := e.UnlockVault(context.Background(), "wrong", header, wrapped)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
	assert.Nil(t, res)
	assert.True(t, header.IsLegacy())
}

func TestEngineRotatePasswordPreservesDEK(t *testing.T) {
	e := fastEngine()
	ctx := context.Background()

	created, err := e.CreateVault(ctx, "old password")
	require.NoError(t, err)

	before, err := e.UnlockVault(ctx, "old password", created.Header, created.WrappedKey)
	require.NoError(t, err)
	dek := append([]byte(nil), before.Key...)

	rotated, err := e.RotatePassword(ctx, "old password", "new password", created.Header, created.WrappedKey)
	require.NoError(t, err)
	assert.NotEqual(t, created.Header.KDFSalt, rotated.Header.KDFSalt)
	assert.True(t, VerifyPassword(rotated.PasswordHash, "new password"))

	_, err = e.UnlockVault(ctx, "old password", rotated.Header, rotated.WrappedKey)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)

	after, err := e.UnlockVault(ctx, "new password", rotated.Header, rotated.WrappedKey)
	require.NoError(t, err)
	assert.Equal(t, dek, after.Key)
}

func TestEngineRotatePasswordWrongOld(t *testing.T) {
	e := fastEngine()
	ctx := context.Background()

	created, err := e.CreateVault(ctx, "old password")
	require.NoError(t, err)

	_, err = e.RotatePassword(ctx, "bad", "new password", created.Header, created.WrappedKey)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestEnginePayloadRoundTrip(t *testing.T) {
	e := fastEngine()
	key := testKey()
	plaintext := []byte(`{"entries":[]}`)

	blob, checksum, err := e.EncryptPayload(plaintext, key)
	require.NoError(t, err)
	assert.Equal(t, Checksum(plaintext), checksum)

	got, err := e.DecryptPayload(blob, key, checksum, "vault-1")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEngineDecryptPayloadChecksumMismatch(t *testing.T) {
	e := fastEngine()
	key := testKey()

	blob, _, err := e.EncryptPayload([]byte("payload"), key)
	require.NoError(t, err)

	_, err = e.DecryptPayload(blob, key, Checksum([]byte("other")), "vault-1")

	var integrityErr *models.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, "vault-1", integrityErr.VaultID)
}

func TestEngineDecryptPayloadMissingChecksum(t *testing.T) {
	e := fastEngine()
	key := testKey()

	blob, _, err := e.EncryptPayload([]byte("payload"), key)
	require.NoError(t, err)

	// An absent checksum is rejected, not waved through.
	_, err = e.DecryptPayload(blob, key, "", "vault-1")

	var integrityErr *models.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Empty(t, integrityErr.Expected)
	assert.NotEmpty(t, integrityErr.Actual)
}

func TestEngineUnlockRejectsWeakHeaderParams(t *testing.T) {
	e := fastEngine()

	header := &models.VaultHeader{
		VaultID:   "vault-weak",
		Version:   models.HeaderVersion,
		KDFSalt:   []byte("0123456789abcdef"),
		KDFParams: models.KDFParams{Time: 1, MemoryKiB: 16, Threads: 1, KeyLen: KeySize},
	}

	_, err := e.UnlockVault(context.Background(), "password", header, []byte("blob"))
	assert.ErrorIs(t, err, models.ErrKDFUnavailable)
}
