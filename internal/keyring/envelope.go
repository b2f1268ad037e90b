package keyring

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

const (
	// EnvelopeVersion is the current envelope format.
	EnvelopeVersion = 1

	// DefaultTTL is how long a stored credential stays usable.
	DefaultTTL = 30 * 24 * time.Hour

	// firstSeenSuffix keys the out-of-band marker for legacy blobs that
	// carry no timestamp of their own.
	firstSeenSuffix = ".first_seen"

	hkdfInfo = "genvault/envelope/v1"
)

// Envelope wraps vault key material with the metadata needed for TTL
// expiry. WrappedKey is sealed under a key derived from the platform
// secret; the envelope itself is safe to hand to the secret store.
type Envelope struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	WrappedKey []byte    `json:"wrapped_key"`
}

// Manager wraps and unwraps credential envelopes against a SecretStore.
type Manager struct {
	store  SecretStore
	ttl    time.Duration
	now    func() time.Time
	logger *events.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides the default 30-day TTL.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an envelope manager over a secret store.
func NewManager(store SecretStore, logger *events.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger.WithField("component", "keyring"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save wraps keyMaterial under the platform secret and stores the envelope
// for vaultID, replacing any previous one.
func (m *Manager) Save(vaultID string, keyMaterial, platformSecret []byte) error {
	wrapKey, err := deriveWrapKey(platformSecret)
	if err != nil {
		return err
	}
	defer crypto.Zero(wrapKey)

	wrapped, err := crypto.Seal(keyMaterial, wrapKey)
	if err != nil {
		return fmt.Errorf("wrap key material: %w", err)
	}

	env := Envelope{
		Version:    EnvelopeVersion,
		CreatedAt:  m.now().UTC(),
		WrappedKey: wrapped,
	}

	blob, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := m.store.Put(vaultID, blob); err != nil {
		return fmt.Errorf("store envelope: %w", err)
	}

	// A fresh versioned envelope supersedes any legacy first-seen marker.
	_ = m.store.Delete(vaultID + firstSeenSuffix)

	m.logger.WithField("vault_id", vaultID).Debug("Stored credential envelope")
	return nil
}

// Load retrieves and unwraps the envelope for vaultID. An envelope older
// than the TTL is deleted from the store and reported as
// models.ErrCredentialExpired; the caller falls back to master-password
// unlock. Blobs that predate the envelope format are aged via a first-seen
// marker; when that marker cannot be persisted the credential is treated
// as already expired rather than living forever.
func (m *Manager) Load(vaultID string, platformSecret []byte) ([]byte, error) {
	blob, err := m.store.Get(vaultID)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil || env.Version == 0 || env.CreatedAt.IsZero() {
		return m.loadLegacy(vaultID, blob, platformSecret)
	}

	if m.expired(env.CreatedAt) {
		return nil, m.expire(vaultID)
	}

	return m.unwrap(env.WrappedKey, platformSecret)
}

// Delete removes the stored envelope for a vault.
func (m *Manager) Delete(vaultID string) error {
	_ = m.store.Delete(vaultID + firstSeenSuffix)
	return m.store.Delete(vaultID)
}

// loadLegacy handles pre-envelope blobs: raw sealed key material with no
// version or timestamp. Age is tracked out of band with a first-seen
// marker stored beside the credential.
func (m *Manager) loadLegacy(vaultID string, blob, platformSecret []byte) ([]byte, error) {
	markerKey := vaultID + firstSeenSuffix

	marker, err := m.store.Get(markerKey)
	if err != nil {
		// First encounter: start the clock now. Fail closed if the marker
		// cannot be persisted.
		stamp, _ := m.now().UTC().MarshalText()
		if putErr := m.store.Put(markerKey, stamp); putErr != nil {
			m.logger.WithError(putErr).WithField("vault_id", vaultID).
				Warn("Cannot persist first-seen marker, treating credential as expired")
			return nil, m.expire(vaultID)
		}
		return m.unwrap(blob, platformSecret)
	}

	var firstSeen time.Time
	if err := firstSeen.UnmarshalText(marker); err != nil {
		return nil, m.expire(vaultID)
	}

	if m.expired(firstSeen) {
		return nil, m.expire(vaultID)
	}

	return m.unwrap(blob, platformSecret)
}

// expire deletes the stored envelope, not merely ignores it, and returns
// the expiry sentinel.
func (m *Manager) expire(vaultID string) error {
	if err := m.Delete(vaultID); err != nil {
		m.logger.WithError(err).WithField("vault_id", vaultID).Warn("Failed to delete expired envelope")
	}
	m.logger.WithField("vault_id", vaultID).Info("Credential envelope expired")
	return models.ErrCredentialExpired
}

func (m *Manager) expired(createdAt time.Time) bool {
	return m.now().Sub(createdAt) > m.ttl
}

func (m *Manager) unwrap(wrapped, platformSecret []byte) ([]byte, error) {
	wrapKey, err := deriveWrapKey(platformSecret)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(wrapKey)

	key, err := crypto.Open(wrapped, wrapKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidEnvelope, err)
	}
	return key, nil
}

// deriveWrapKey expands the platform secret into an AEAD key with
// HKDF-SHA256. The info string domain-separates envelope wrapping from any
// other use of the same secret.
func deriveWrapKey(platformSecret []byte) ([]byte, error) {
	if len(platformSecret) == 0 {
		return nil, fmt.Errorf("%w: empty platform secret", models.ErrInvalidEnvelope)
	}

	key := make([]byte, crypto.KeySize)
	stream := hkdf.New(sha256.New, platformSecret, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(stream, key); err != nil {
		return nil, fmt.Errorf("derive wrapping key: %w", err)
	}
	return key, nil
}
