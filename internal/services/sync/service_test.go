package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
	"github.com/genvault/genvault/internal/providers"
	"github.com/genvault/genvault/internal/state"
	"github.com/genvault/genvault/test/testutil"
)

type serviceFixture struct {
	service  *Service
	provider *providers.MockProvider
	state    *state.MockStore
	vaults   *mockVaultStore
	key      []byte
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		provider: providers.NewMockProvider(),
		state:    state.NewMockStore(),
		vaults:   newMockVaultStore(),
		key:      testutil.TestKey(0x42),
	}
	f.service = NewService(
		providers.NewRegistry(f.provider),
		f.state,
		f.vaults,
		crypto.NewEngine(events.Nop()),
		Config{DeviceID: "device-a", MaxRetries: 1, RetryDelay: time.Millisecond},
		events.Nop(),
	)
	return f
}

func TestServiceSyncDispatchesByProvider(t *testing.T) {
	f := newServiceFixture(t)

	plain := testutil.EntryPayloadBytes(t)
	f.vaults.set(testutil.EncryptedSyncData(t, "vault-1", plain, f.key, baseTime, "device-a", 1))

	res, err := f.service.Sync(context.Background(), "mock", "vault-1", f.key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUploaded, res.Outcome)

	_, err = f.service.Sync(context.Background(), "dropbox", "vault-1", f.key)
	assert.Error(t, err)
}

func TestServiceEngineReused(t *testing.T) {
	f := newServiceFixture(t)

	e1, err := f.service.engine("mock")
	require.NoError(t, err)
	e2, err := f.service.engine("mock")
	require.NoError(t, err)
	assert.Same(t, e1, e2)
}

func TestServiceStatus(t *testing.T) {
	f := newServiceFixture(t)

	// Unknown vaults report never-synced rather than an error.
	meta, err := f.service.Status("vault-new")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeverSynced, meta.Status)

	f.state.SaveMeta("vault-1", &models.SyncMetadata{
		VaultID: "vault-1",
		Status:  models.StatusSynced,
	})

	meta, err = f.service.Status("vault-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, meta.Status)
}

func TestServiceListVaults(t *testing.T) {
	f := newServiceFixture(t)

	f.state.SaveMeta("vault-a", models.NewSyncMetadata("vault-a"))
	f.state.SaveMeta("vault-b", models.NewSyncMetadata("vault-b"))

	ids, err := f.service.ListVaults()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vault-a", "vault-b"}, ids)
}
