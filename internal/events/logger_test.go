package events

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genvault.log")

	logger, err := NewLogger(&Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.WithField("vault_id", "vault-1").
		WithFields(map[string]interface{}{"op": "sync"}).
		Info("test message")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "vault-1", entry["vault_id"])
	assert.Equal(t, "sync", entry["op"])
	assert.Equal(t, "info", entry["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genvault.log")

	logger, err := NewLogger(&Config{Level: "error", Format: "json", File: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("hidden")
	logger.Error("shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shown")
	assert.NotContains(t, string(data), "hidden")
}

func TestFromContextDefaultsToNop(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)

	// Safe to use without panicking.
	logger.WithError(nil).Info("discarded")
}

func TestContextRoundTrip(t *testing.T) {
	base := Nop()
	ctx := WithLogger(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))

	ctx = WithVaultID(ctx, "vault-1")
	assert.Equal(t, "vault-1", GetVaultID(ctx))
	assert.NotNil(t, FromContext(ctx))

	assert.Empty(t, GetVaultID(context.Background()))
}
