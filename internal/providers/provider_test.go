package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/models"
)

func TestRegistryGet(t *testing.T) {
	mock := NewMockProvider()
	r := NewRegistry(mock)

	p, err := r.Get("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	_, err = r.Get("dropbox")
	assert.Error(t, err)

	assert.Equal(t, []string{"mock"}, r.Names())
}

func TestMockProviderUploadDownload(t *testing.T) {
	mock := NewMockProvider()
	ctx := context.Background()

	data := models.VaultSyncData{
		VaultID:          "vault-1",
		EncryptedPayload: []byte("blob"),
		Timestamp:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		DeviceID:         "device-a",
		Checksum:         "abc",
		Version:          1,
	}

	res, err := mock.UploadVault(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "file-vault-1", res.FileID)
	assert.NotEmpty(t, res.Revision)

	got, err := mock.DownloadVault(ctx, res.FileID)
	require.NoError(t, err)
	assert.True(t, got.Equal(data))

	list, err := mock.ListVaults(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "vault-1", list[0].VaultID)
	assert.Equal(t, data.Timestamp, list[0].ModifiedTime)
}

func TestMockProviderDownloadMissing(t *testing.T) {
	mock := NewMockProvider()

	_, err := mock.DownloadVault(context.Background(), "file-missing")

	var provErr *models.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.ProviderNotFound, provErr.Kind)
}

func TestMockProviderScriptedFailures(t *testing.T) {
	mock := NewMockProvider()
	ctx := context.Background()
	netErr := &models.ProviderError{Kind: models.ProviderNetworkError, Provider: "mock"}

	mock.FailNextUpload(netErr)

	data := models.VaultSyncData{VaultID: "vault-1", EncryptedPayload: []byte("blob")}
	_, err := mock.UploadVault(ctx, data)
	assert.ErrorIs(t, err, netErr)

	// Queue drained; next upload succeeds.
	_, err = mock.UploadVault(ctx, data)
	assert.NoError(t, err)
	assert.Equal(t, 2, mock.UploadCalls)
}

func TestMockProviderDelete(t *testing.T) {
	mock := NewMockProvider()
	ctx := context.Background()

	fileID := mock.SeedVault(models.VaultSyncData{VaultID: "vault-1", EncryptedPayload: []byte("blob")})

	require.NoError(t, mock.DeleteVault(ctx, fileID))

	_, ok := mock.Stored("vault-1")
	assert.False(t, ok)

	err := mock.DeleteVault(ctx, fileID)
	var provErr *models.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.ProviderNotFound, provErr.Kind)
}
