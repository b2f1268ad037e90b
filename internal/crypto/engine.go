package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

// Engine orchestrates vault key management: salt generation, key
// derivation, DEK wrapping, and legacy-format migration. Vault payloads are
// encrypted with a random data-encryption key (DEK) which is itself wrapped
// by a key-encryption key (KEK) derived from the master password, so
// rotating the password only re-wraps the DEK.
//
// The engine performs no I/O; persisting headers and wrapped keys belongs
// to the caller.
type Engine struct {
	params models.KDFParams
	logger *events.Logger
}

// NewEngine creates an engine using the default KDF parameters for new
// vaults. Existing vaults always use the parameters recorded in their
// header.
func NewEngine(logger *events.Logger) *Engine {
	return &Engine{
		params: DefaultKDFParams,
		logger: logger.WithField("component", "crypto_engine"),
	}
}

// CreatedVault is everything CreateVault produces. The caller persists the
// header and wrapped key; the password hash goes wherever master-password
// verification happens.
type CreatedVault struct {
	Header       *models.VaultHeader
	WrappedKey   []byte
	PasswordHash string
}

// UnlockResult carries the unwrapped vault key. When a legacy vault was
// migrated, UpdatedHeader and UpdatedWrappedKey are non-nil and must be
// persisted atomically by the caller (write-new-then-replace).
type UnlockResult struct {
	Key               []byte
	UpdatedHeader     *models.VaultHeader
	UpdatedWrappedKey []byte
	Migrated          bool
}

// CreateVault generates a new vault: fresh random salt, KEK derived from
// the password, random DEK wrapped by the KEK, and a portable password
// hash.
func (e *Engine) CreateVault(ctx context.Context, password string) (*CreatedVault, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	kek, err := DeriveKey(password, salt, e.params)
	if err != nil {
		return nil, err
	}
	defer Zero(kek)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dek, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	defer Zero(dek)

	wrapped, err := Seal(dek, kek)
	if err != nil {
		return nil, fmt.Errorf("wrap vault key: %w", err)
	}

	passwordHash, err := HashPassword(password, e.params)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	header := &models.VaultHeader{
		VaultID:      uuid.NewString(),
		Version:      models.HeaderVersion,
		KDFAlgorithm: models.KDFArgon2id,
		KDFSalt:      salt,
		KDFParams:    e.params,
		CreatedAt:    now,
		ModifiedAt:   now,
	}

	e.logger.WithField("vault_id", header.VaultID).Info("Created vault")

	return &CreatedVault{
		Header:       header,
		WrappedKey:   wrapped,
		PasswordHash: passwordHash,
	}, nil
}

// UnlockVault re-derives the KEK from the header's salt and unwraps the
// DEK. Headers without a salt are legacy vaults: the KEK is derived from
// the deterministic SHA256(vaultID) salt, and on success the vault is
// migrated to a fresh random salt exactly once. The migration is
// transparent beyond the updated header and wrapped key in the result.
func (e *Engine) UnlockVault(ctx context.Context, password string, header *models.VaultHeader, wrappedKey []byte) (*UnlockResult, error) {
	if header == nil {
		return nil, fmt.Errorf("nil vault header")
	}

	params := header.KDFParams
	if params == (models.KDFParams{}) {
		// Headers written before parameters were recorded used the
		// then-current defaults.
		params = DefaultKDFParams
	}

	if header.IsLegacy() {
		return e.unlockLegacy(ctx, password, header, wrappedKey, params)
	}

	kek, err := DeriveKey(password, header.KDFSalt, params)
	if err != nil {
		return nil, err
	}
	defer Zero(kek)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dek, err := Open(wrappedKey, kek)
	if err != nil {
		return nil, err
	}

	return &UnlockResult{Key: dek}, nil
}

func (e *Engine) unlockLegacy(ctx context.Context, password string, header *models.VaultHeader, wrappedKey []byte, params models.KDFParams) (*UnlockResult, error) {
	legacyKEK, err := DeriveKey(password, legacySalt(header.VaultID), params)
	if err != nil {
		return nil, err
	}
	defer Zero(legacyKEK)

	dek, err := Open(wrappedKey, legacyKEK)
	if err != nil {
		// Wrong password or tampering. No migration on failure.
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		Zero(dek)
		return nil, err
	}

	// Migrate: fresh random salt, re-derive, re-wrap. The caller persists
	// the updated header and wrapped key atomically.
	newSalt, err := GenerateSalt()
	if err != nil {
		Zero(dek)
		return nil, err
	}

	newKEK, err := DeriveKey(password, newSalt, e.params)
	if err != nil {
		Zero(dek)
		return nil, err
	}
	defer Zero(newKEK)

	newWrapped, err := Seal(dek, newKEK)
	if err != nil {
		Zero(dek)
		return nil, fmt.Errorf("re-wrap vault key: %w", err)
	}

	updated := header.Clone()
	updated.KDFSalt = newSalt
	updated.KDFParams = e.params
	updated.Version = models.HeaderVersion
	updated.ModifiedAt = time.Now().UTC()

	e.logger.WithField("vault_id", header.VaultID).Info("Migrated legacy vault to random salt")

	return &UnlockResult{
		Key:               dek,
		UpdatedHeader:     updated,
		UpdatedWrappedKey: newWrapped,
		Migrated:          true,
	}, nil
}

// RotatePassword re-wraps the DEK under a KEK derived from the new
// password. Payload data is untouched; only the wrapped key, salt, and
// password hash change.
func (e *Engine) RotatePassword(ctx context.Context, oldPassword, newPassword string, header *models.VaultHeader, wrappedKey []byte) (*CreatedVault, error) {
	res, err := e.UnlockVault(ctx, oldPassword, header, wrappedKey)
	if err != nil {
		return nil, err
	}
	defer Zero(res.Key)

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	kek, err := DeriveKey(newPassword, salt, e.params)
	if err != nil {
		return nil, err
	}
	defer Zero(kek)

	wrapped, err := Seal(res.Key, kek)
	if err != nil {
		return nil, fmt.Errorf("re-wrap vault key: %w", err)
	}

	passwordHash, err := HashPassword(newPassword, e.params)
	if err != nil {
		return nil, err
	}

	updated := header.Clone()
	updated.KDFSalt = salt
	updated.KDFParams = e.params
	updated.Version = models.HeaderVersion
	updated.ModifiedAt = time.Now().UTC()

	e.logger.WithField("vault_id", header.VaultID).Info("Rotated vault password")

	return &CreatedVault{
		Header:       updated,
		WrappedKey:   wrapped,
		PasswordHash: passwordHash,
	}, nil
}

// EncryptPayload seals a plaintext payload with the vault key and returns
// the blob plus the plaintext checksum to record in the header.
func (e *Engine) EncryptPayload(plaintext, key []byte) ([]byte, string, error) {
	blob, err := Seal(plaintext, key)
	if err != nil {
		return nil, "", err
	}
	return blob, Checksum(plaintext), nil
}

// DecryptPayload opens a payload blob and verifies the plaintext checksum
// against the expected value. A missing or mismatched checksum is fatal:
// the plaintext is never returned alongside a warning.
func (e *Engine) DecryptPayload(blob, key []byte, expectedChecksum, vaultID string) ([]byte, error) {
	plaintext, err := Open(blob, key)
	if err != nil {
		return nil, err
	}

	actual := Checksum(plaintext)
	if actual != expectedChecksum {
		Zero(plaintext)
		return nil, &models.IntegrityError{
			VaultID:  vaultID,
			Expected: expectedChecksum,
			Actual:   actual,
		}
	}

	return plaintext, nil
}

// Checksum returns the hex SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// legacySalt reproduces the deterministic salt of pre-migration vaults.
// Insecure by construction; used only as a migration source.
func legacySalt(vaultID string) []byte {
	sum := sha256.Sum256([]byte(vaultID))
	return sum[:]
}
