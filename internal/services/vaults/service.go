// Package vaults orchestrates the unlock flow the presentation layer
// calls: rate-limiter gate, crypto engine, credential-envelope fast path,
// and the session that owns the vault key while it is unlocked.
package vaults

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/keyring"
	"github.com/genvault/genvault/internal/models"
	"github.com/genvault/genvault/internal/ratelimit"
	"github.com/genvault/genvault/internal/storage"
)

// Session holds the vault key for one unlocked vault. At most one session
// exists per vault; Lock zeroes the key before releasing it.
type Session struct {
	VaultID    string
	UnlockedAt time.Time

	mu     sync.Mutex
	key    []byte
	locked bool
}

// Key returns the vault key, or ErrVaultLocked after Lock.
func (s *Session) Key() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return nil, models.ErrVaultLocked
	}
	return s.key, nil
}

// Lock zeroes the key material and ends the session. Best-effort under a
// garbage-collected runtime; copies the collector made are out of reach.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return
	}
	crypto.Zero(s.key)
	s.key = nil
	s.locked = true
}

// Service manages vault creation, unlock, and sessions.
type Service struct {
	crypto    *crypto.Engine
	store     *storage.VaultFileStore
	limiter   *ratelimit.Limiter
	envelopes *keyring.Manager
	logger    *events.Logger

	mu             sync.Mutex
	sessions       map[string]*Session
	platformSecret []byte
}

// NewService creates a vaults service.
func NewService(
	cryptoEngine *crypto.Engine,
	store *storage.VaultFileStore,
	limiter *ratelimit.Limiter,
	envelopes *keyring.Manager,
	logger *events.Logger,
) *Service {
	return &Service{
		crypto:    cryptoEngine,
		store:     store,
		limiter:   limiter,
		envelopes: envelopes,
		logger:    logger.WithField("service", "vaults"),
		sessions:  make(map[string]*Session),
	}
}

// Create builds a new vault with an empty entry payload, persists its
// records, and returns an unlocked session.
func (s *Service) Create(ctx context.Context, password string) (*Session, error) {
	created, err := s.crypto.CreateVault(ctx, password)
	if err != nil {
		return nil, err
	}

	unlock, err := s.crypto.UnlockVault(ctx, password, created.Header, created.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("unlock new vault: %w", err)
	}

	payload := models.EntryPayload{Entries: []models.Entry{}}
	plaintext, err := payload.Encode()
	if err != nil {
		crypto.Zero(unlock.Key)
		return nil, fmt.Errorf("encode initial payload: %w", err)
	}

	blob, checksum, err := s.crypto.EncryptPayload(plaintext, unlock.Key)
	if err != nil {
		crypto.Zero(unlock.Key)
		return nil, err
	}
	created.Header.Checksum = checksum

	if err := s.store.CreateVault(created.Header, created.WrappedKey, created.PasswordHash, blob); err != nil {
		crypto.Zero(unlock.Key)
		return nil, err
	}

	return s.openSession(created.Header.VaultID, unlock.Key), nil
}

// Unlock checks the rate limiter, verifies the master password, and
// unwraps the vault key. Every failure costs an attempt; a lockout is
// reported as TooManyAttemptsError before any key derivation runs.
func (s *Service) Unlock(ctx context.Context, vaultID, password string) (*Session, error) {
	decision := s.limiter.CheckAndRecordAttempt(vaultID)
	if !decision.Allowed {
		return nil, &models.TooManyAttemptsError{
			VaultID:    vaultID,
			RetryAfter: decision.RetryAfter,
		}
	}

	passwordHash, err := s.store.LoadPasswordHash(vaultID)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyPassword(passwordHash, password) {
		s.logger.WithFields(map[string]interface{}{
			"vault_id":  vaultID,
			"remaining": decision.Remaining,
		}).Warn("Master password verification failed")
		return nil, models.ErrAuthenticationFailed
	}

	header, err := s.store.LoadHeader(vaultID)
	if err != nil {
		return nil, err
	}
	wrappedKey, err := s.store.LoadWrappedKey(vaultID)
	if err != nil {
		return nil, err
	}

	result, err := s.crypto.UnlockVault(ctx, password, header, wrappedKey)
	if err != nil {
		return nil, err
	}

	s.limiter.RecordSuccess(vaultID)

	if result.Migrated {
		if err := s.store.ReplaceKeyMaterial(result.UpdatedHeader, result.UpdatedWrappedKey); err != nil {
			crypto.Zero(result.Key)
			return nil, fmt.Errorf("persist migrated key material: %w", err)
		}
	}

	s.saveEnvelope(vaultID, result.Key)

	return s.openSession(vaultID, result.Key), nil
}

// UnlockWithEnvelope tries the stored credential envelope instead of the
// master password. models.ErrCredentialExpired means the caller must fall
// back to Unlock.
func (s *Service) UnlockWithEnvelope(ctx context.Context, vaultID string, platformSecret []byte) (*Session, error) {
	key, err := s.envelopes.Load(vaultID, platformSecret)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("vault_id", vaultID).Debug("Unlocked via credential envelope")
	return s.openSession(vaultID, key), nil
}

// Lock ends the session for a vault, zeroing its key material.
func (s *Service) Lock(vaultID string) {
	s.mu.Lock()
	session := s.sessions[vaultID]
	delete(s.sessions, vaultID)
	s.mu.Unlock()

	if session != nil {
		session.Lock()
		s.logger.WithField("vault_id", vaultID).Info("Vault locked")
	}
}

// Session returns the active session for a vault, if any.
func (s *Service) Session(vaultID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[vaultID]
	return session, ok
}

// RotatePassword re-wraps the vault key under a new master password. The
// payload is untouched; only key material and the password hash change.
func (s *Service) RotatePassword(ctx context.Context, vaultID, oldPassword, newPassword string) error {
	header, err := s.store.LoadHeader(vaultID)
	if err != nil {
		return err
	}
	wrappedKey, err := s.store.LoadWrappedKey(vaultID)
	if err != nil {
		return err
	}

	rotated, err := s.crypto.RotatePassword(ctx, oldPassword, newPassword, header, wrappedKey)
	if err != nil {
		return err
	}

	if err := s.store.ReplaceKeyMaterial(rotated.Header, rotated.WrappedKey); err != nil {
		return err
	}
	return s.store.ReplacePasswordHash(vaultID, rotated.PasswordHash)
}

// SetPlatformSecret installs the secret used for the envelope fast path.
// Without one, unlocks never persist credentials.
func (s *Service) SetPlatformSecret(secret []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platformSecret = secret
}

// saveEnvelope persists the credential envelope for the fast path. Failure
// is logged, not fatal: the user just types the password next time.
func (s *Service) saveEnvelope(vaultID string, key []byte) {
	s.mu.Lock()
	secret := s.platformSecret
	s.mu.Unlock()

	if len(secret) == 0 {
		return
	}
	if err := s.envelopes.Save(vaultID, key, secret); err != nil {
		s.logger.WithError(err).WithField("vault_id", vaultID).Warn("Failed to store credential envelope")
	}
}

func (s *Service) openSession(vaultID string, key []byte) *Session {
	session := &Session{
		VaultID:    vaultID,
		UnlockedAt: time.Now().UTC(),
		key:        key,
	}

	s.mu.Lock()
	if old, ok := s.sessions[vaultID]; ok {
		old.Lock()
	}
	s.sessions[vaultID] = session
	s.mu.Unlock()

	s.logger.WithField("vault_id", vaultID).Info("Vault unlocked")
	return session
}
