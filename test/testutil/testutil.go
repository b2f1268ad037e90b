// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

// TestLogger returns a silent logger for tests.
func TestLogger() *events.Logger {
	return events.Nop()
}

// TestContext creates a context with a reasonable test timeout.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Clock is an adjustable time source for components that take an
// injectable clock.
type Clock struct {
	now time.Time
}

// NewClock creates a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// EntryPayloadBytes encodes entries into a plaintext payload.
func EntryPayloadBytes(t *testing.T, entries ...models.Entry) []byte {
	t.Helper()

	payload := models.EntryPayload{Entries: entries}
	if payload.Entries == nil {
		payload.Entries = []models.Entry{}
	}
	data, err := payload.Encode()
	require.NoError(t, err)
	return data
}

// EncryptedSyncData builds a VaultSyncData fixture whose payload is the
// given plaintext sealed under key.
func EncryptedSyncData(t *testing.T, vaultID string, plaintext, key []byte, timestamp time.Time, deviceID string, version int) models.VaultSyncData {
	t.Helper()

	blob, err := crypto.Seal(plaintext, key)
	require.NoError(t, err)

	return models.VaultSyncData{
		VaultID:          vaultID,
		EncryptedPayload: blob,
		Timestamp:        timestamp,
		DeviceID:         deviceID,
		Checksum:         crypto.Checksum(plaintext),
		Version:          version,
	}
}

// TestKey returns a deterministic 32-byte key for fixtures.
func TestKey(fill byte) []byte {
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = fill
	}
	return key
}
