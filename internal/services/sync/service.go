package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
	"github.com/genvault/genvault/internal/providers"
	"github.com/genvault/genvault/internal/state"
	"github.com/genvault/genvault/internal/transport"
)

// KeyFunc supplies the vault key for a vault ID. The watch loop calls it
// when a change notification arrives; an error means the vault is locked
// and the notification is skipped.
type KeyFunc func(vaultID string) ([]byte, error)

// Service provides high-level sync operations across the registered
// providers. One engine exists per provider, created lazily.
type Service struct {
	registry *providers.Registry
	state    state.Store
	vaults   VaultStore
	crypto   *crypto.Engine
	cfg      Config
	logger   *events.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewService creates a sync service.
func NewService(
	registry *providers.Registry,
	stateStore state.Store,
	vaultStore VaultStore,
	cryptoEngine *crypto.Engine,
	cfg Config,
	logger *events.Logger,
) *Service {
	return &Service{
		registry: registry,
		state:    stateStore,
		vaults:   vaultStore,
		crypto:   cryptoEngine,
		cfg:      cfg,
		logger:   logger.WithField("service", "sync"),
		engines:  make(map[string]*Engine),
	}
}

// Sync runs a full synchronization of one vault against the named
// provider.
func (s *Service) Sync(ctx context.Context, providerName, vaultID string, key []byte) (*Result, error) {
	engine, err := s.engine(providerName)
	if err != nil {
		return nil, err
	}
	return engine.Sync(ctx, vaultID, key)
}

// ResolveConflict resolves a previously detected conflict.
func (s *Service) ResolveConflict(ctx context.Context, providerName string, conflict *models.Conflict, strategy Strategy, key []byte) (*models.VaultSyncData, error) {
	engine, err := s.engine(providerName)
	if err != nil {
		return nil, err
	}
	return engine.ResolveConflict(ctx, conflict, strategy, key)
}

// Status returns the sync metadata for a vault.
func (s *Service) Status(vaultID string) (*models.SyncMetadata, error) {
	meta, err := s.state.Load(vaultID)
	if errors.Is(err, state.ErrStateNotFound) {
		return models.NewSyncMetadata(vaultID), nil
	}
	return meta, err
}

// ListVaults returns all vault IDs with sync metadata.
func (s *Service) ListVaults() ([]string, error) {
	return s.state.List()
}

// Watch consumes a provider change feed and triggers a sync run for each
// notified vault. Notifications arriving while that vault is already
// syncing are coalesced into the in-flight run (the engine rejects the
// duplicate). Returns when the context is cancelled or the feed closes.
func (s *Service) Watch(ctx context.Context, client *transport.WatchClient, providerName string, keyFor KeyFunc) error {
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	s.logger.WithField("provider", providerName).Info("Watching change feed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-client.Changes():
			if !ok {
				s.logger.Info("Change feed closed")
				return nil
			}

			key, err := keyFor(event.VaultID)
			if err != nil {
				s.logger.WithError(err).WithField("vault_id", event.VaultID).Debug("Skipping change for locked vault")
				continue
			}

			syncCtx := events.WithVaultID(events.WithLogger(ctx, s.logger), event.VaultID)
			if _, err := s.Sync(syncCtx, providerName, event.VaultID, key); err != nil {
				if errors.Is(err, models.ErrSyncInProgress) {
					s.logger.WithField("vault_id", event.VaultID).Debug("Change coalesced into running sync")
					continue
				}
				s.logger.WithError(err).WithField("vault_id", event.VaultID).Warn("Change-triggered sync failed")
			}
		}
	}
}

func (s *Service) engine(providerName string) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if engine, ok := s.engines[providerName]; ok {
		return engine, nil
	}

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}

	engine := NewEngine(provider, s.state, s.vaults, s.crypto, s.cfg, s.logger)
	s.engines[providerName] = engine
	return engine, nil
}
