package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
	"github.com/genvault/genvault/internal/providers"
	"github.com/genvault/genvault/internal/state"
)

// VaultStore abstracts the collaborator-owned local vault blob: sync only
// needs to read the current encrypted snapshot and replace it atomically.
type VaultStore interface {
	// Load returns the current local snapshot for a vault.
	Load(vaultID string) (*models.VaultSyncData, error)

	// Replace atomically replaces the local snapshot.
	Replace(vaultID string, data *models.VaultSyncData) error
}

// Outcome describes how a sync run ended.
type Outcome string

const (
	OutcomeUpToDate   Outcome = "up_to_date"
	OutcomeUploaded   Outcome = "uploaded"
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeConflict   Outcome = "conflict"
)

// Result is the product of a sync run. Conflict is set only when Outcome
// is OutcomeConflict; the engine never resolves a conflict on its own.
type Result struct {
	Outcome  Outcome
	Conflict *models.Conflict
}

// Config contains sync engine configuration.
type Config struct {
	DeviceID   string
	MaxRetries int
	RetryDelay time.Duration
}

// Engine drives the compare-and-reconcile protocol between the local vault
// snapshot and one cloud provider. Plaintext never reaches the provider;
// downloads are decrypted and checksum-verified before they replace any
// local state.
type Engine struct {
	provider providers.Provider
	state    state.Store
	vaults   VaultStore
	crypto   *crypto.Engine
	logger   *events.Logger

	deviceID   string
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time

	// One sync in flight per vault.
	mu       sync.Mutex
	inFlight map[string]bool
}

// NewEngine creates a sync engine.
func NewEngine(
	provider providers.Provider,
	stateStore state.Store,
	vaultStore VaultStore,
	cryptoEngine *crypto.Engine,
	cfg Config,
	logger *events.Logger,
) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	return &Engine{
		provider:   provider,
		state:      stateStore,
		vaults:     vaultStore,
		crypto:     cryptoEngine,
		logger:     logger.WithField("component", "sync_engine"),
		deviceID:   cfg.DeviceID,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		now:        time.Now,
	}
}

// Sync performs a full synchronization for one vault. The vault key is
// needed to verify pulled payloads before they replace local state.
//
// Concurrent calls for the same vault are rejected with ErrSyncInProgress,
// not interleaved. A failed or cancelled run leaves the prior local vault
// untouched and never marks the vault as synced.
func (e *Engine) Sync(ctx context.Context, vaultID string, key []byte) (*Result, error) {
	release, err := e.acquire(vaultID)
	if err != nil {
		return nil, err
	}
	defer release()

	local, err := e.vaults.Load(vaultID)
	if err != nil {
		return nil, fmt.Errorf("load local vault: %w", err)
	}

	meta, err := e.loadOrCreateMeta(vaultID)
	if err != nil {
		return nil, fmt.Errorf("load sync metadata: %w", err)
	}

	prevStatus := meta.Status
	meta.Status = models.StatusSyncing
	if err := e.state.Save(vaultID, meta); err != nil {
		return nil, fmt.Errorf("save sync metadata: %w", err)
	}

	result, err := e.run(ctx, local, meta, key)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Aborted, not failed. The vault is simply not synced yet.
			meta.Status = prevStatus
			if meta.Status == models.StatusSyncing {
				meta.Status = models.StatusPending
			}
		} else {
			meta.SetError(err)
		}
		if saveErr := e.state.Save(vaultID, meta); saveErr != nil {
			e.logger.WithError(saveErr).WithField("vault_id", vaultID).Error("Failed to save metadata after sync error")
		}
		return nil, err
	}

	if saveErr := e.state.Save(vaultID, meta); saveErr != nil {
		return nil, fmt.Errorf("save sync metadata: %w", saveErr)
	}

	e.logger.WithFields(map[string]interface{}{
		"vault_id": vaultID,
		"outcome":  result.Outcome,
	}).Info("Sync completed")

	return result, nil
}

// run executes the decision table. It mutates meta but persists nothing;
// the caller saves metadata exactly once per run.
func (e *Engine) run(ctx context.Context, local *models.VaultSyncData, meta *models.SyncMetadata, key []byte) (*Result, error) {
	vaultID := local.VaultID

	// Never uploaded: push and remember the file ID.
	if meta.CloudFileID == "" {
		upload, err := e.upload(ctx, *local)
		if err != nil {
			return nil, err
		}

		meta.CloudFileID = upload.FileID
		e.markSynced(meta, *local, upload.ModifiedTime)
		return &Result{Outcome: OutcomeUploaded}, nil
	}

	remoteMeta, err := e.remoteMetadata(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	// The remote baseline is the server-side stamp recorded at the last
	// point of agreement, not the client-clock lastSync: the server stamps
	// our own uploads on its clock, and reading that stamp as a remote
	// change would turn every local-only edit into a conflict.
	lastSync := meta.LastSyncTimestamp
	remoteBase := meta.CloudModifiedTime
	if remoteBase.IsZero() {
		remoteBase = lastSync
	}
	localChanged := local.Timestamp.After(lastSync)
	remoteChanged := remoteMeta.ModifiedTime.After(remoteBase)

	e.logger.WithFields(map[string]interface{}{
		"vault_id":       vaultID,
		"last_sync":      lastSync,
		"local_changed":  localChanged,
		"remote_changed": remoteChanged,
	}).Debug("Comparing sync timestamps")

	switch {
	case !localChanged && !remoteChanged:
		meta.Status = models.StatusSynced
		meta.ClearError()
		return &Result{Outcome: OutcomeUpToDate}, nil

	case localChanged && !remoteChanged:
		upload, err := e.upload(ctx, *local)
		if err != nil {
			return nil, err
		}
		e.markSynced(meta, *local, upload.ModifiedTime)
		return &Result{Outcome: OutcomeUploaded}, nil

	case !localChanged && remoteChanged:
		remote, err := e.download(ctx, vaultID, meta.CloudFileID)
		if err != nil {
			return nil, err
		}
		if err := e.verifyAndReplace(ctx, remote, key); err != nil {
			return nil, err
		}
		e.markSynced(meta, *remote, remoteMeta.ModifiedTime)
		return &Result{Outcome: OutcomeDownloaded}, nil

	default:
		// Both sides diverged. Fetch the remote version so the caller can
		// present both; neither side is overwritten automatically.
		remote, err := e.download(ctx, vaultID, meta.CloudFileID)
		if err != nil {
			return nil, err
		}

		meta.Status = models.StatusConflict
		meta.ConflictDetected = true
		meta.CloudModifiedTime = remote.Timestamp
		meta.LocalModifiedTime = local.Timestamp

		e.logger.WithField("vault_id", vaultID).Warn("Sync conflict detected")

		return &Result{
			Outcome: OutcomeConflict,
			Conflict: &models.Conflict{
				Local:  *local,
				Remote: *remote,
			},
		}, nil
	}
}

// ResolveConflict applies a strategy to a detected conflict and commits the
// winner: a local winner is re-uploaded, a remote winner is verified and
// written over the local snapshot, a merged winner is both.
func (e *Engine) ResolveConflict(ctx context.Context, conflict *models.Conflict, strategy Strategy, key []byte) (*models.VaultSyncData, error) {
	if conflict == nil {
		return nil, fmt.Errorf("nil conflict")
	}
	vaultID := conflict.Local.VaultID

	release, err := e.acquire(vaultID)
	if err != nil {
		return nil, err
	}
	defer release()

	var merger PayloadMerger
	if strategy == StrategySmartMerge {
		merger = &entryMerger{
			crypto:   e.crypto,
			key:      key,
			deviceID: e.deviceID,
			now:      e.now,
		}
	}

	winner, err := Resolve(conflict.Local, conflict.Remote, strategy, merger)
	if err != nil {
		return nil, err
	}

	meta, err := e.loadOrCreateMeta(vaultID)
	if err != nil {
		return nil, fmt.Errorf("load sync metadata: %w", err)
	}

	var cloudModified time.Time
	switch {
	case winner.Equal(conflict.Local):
		upload, err := e.upload(ctx, winner)
		if err != nil {
			return nil, err
		}
		meta.CloudFileID = upload.FileID
		cloudModified = upload.ModifiedTime

	case winner.Equal(conflict.Remote):
		if err := e.verifyAndReplace(ctx, &winner, key); err != nil {
			return nil, err
		}

	default:
		// Merged version: replace local, then push.
		if err := e.vaults.Replace(vaultID, &winner); err != nil {
			return nil, fmt.Errorf("replace local vault: %w", err)
		}
		upload, err := e.upload(ctx, winner)
		if err != nil {
			return nil, err
		}
		meta.CloudFileID = upload.FileID
		cloudModified = upload.ModifiedTime
	}

	meta.ConflictDetected = false
	meta.PendingChanges = false
	e.markSynced(meta, winner, cloudModified)

	if err := e.state.Save(vaultID, meta); err != nil {
		return nil, fmt.Errorf("save sync metadata: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"vault_id": vaultID,
		"strategy": strategy,
	}).Info("Conflict resolved")

	return &winner, nil
}

// Helper methods

func (e *Engine) acquire(vaultID string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight == nil {
		e.inFlight = make(map[string]bool)
	}
	if e.inFlight[vaultID] {
		return nil, models.ErrSyncInProgress
	}
	e.inFlight[vaultID] = true

	return func() {
		e.mu.Lock()
		delete(e.inFlight, vaultID)
		e.mu.Unlock()
	}, nil
}

func (e *Engine) loadOrCreateMeta(vaultID string) (*models.SyncMetadata, error) {
	meta, err := e.state.Load(vaultID)
	if err == nil {
		return meta, nil
	}
	if errors.Is(err, state.ErrStateNotFound) {
		return models.NewSyncMetadata(vaultID), nil
	}
	return nil, err
}

// markSynced records a new point of agreement. cloudModified is the
// server-side stamp of the remote copy (upload result or listing); a
// provider that reports none falls back to the data timestamp.
func (e *Engine) markSynced(meta *models.SyncMetadata, data models.VaultSyncData, cloudModified time.Time) {
	if cloudModified.IsZero() {
		cloudModified = data.Timestamp
	}
	meta.Status = models.StatusSynced
	meta.LastSyncTimestamp = e.now().UTC()
	meta.CloudModifiedTime = cloudModified
	meta.LocalModifiedTime = data.Timestamp
	meta.PendingChanges = false
	meta.ClearError()
}

func (e *Engine) upload(ctx context.Context, data models.VaultSyncData) (*providers.UploadResult, error) {
	var result *providers.UploadResult
	err := e.withRetry(ctx, "upload", func() error {
		res, err := e.provider.UploadVault(ctx, data)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, e.syncError("upload", data.VaultID, err)
	}
	return result, nil
}

func (e *Engine) download(ctx context.Context, vaultID, fileID string) (*models.VaultSyncData, error) {
	var result *models.VaultSyncData
	err := e.withRetry(ctx, "download", func() error {
		res, err := e.provider.DownloadVault(ctx, fileID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, e.syncError("download", vaultID, err)
	}
	return result, nil
}

// remoteMetadata fetches listing metadata for one vault, the cheap call the
// timestamp comparison runs on.
func (e *Engine) remoteMetadata(ctx context.Context, vaultID string) (*providers.Metadata, error) {
	var result *providers.Metadata
	err := e.withRetry(ctx, "list", func() error {
		listing, err := e.provider.ListVaults(ctx)
		if err != nil {
			return err
		}
		for i := range listing {
			if listing[i].VaultID == vaultID {
				result = &listing[i]
				return nil
			}
		}
		return &models.ProviderError{
			Kind:     models.ProviderNotFound,
			Provider: e.provider.Name(),
			Message:  "vault not found in remote listing: " + vaultID,
		}
	})
	if err != nil {
		return nil, e.syncError("list", vaultID, err)
	}
	return result, nil
}

// verifyAndReplace decrypts and checksum-verifies a downloaded snapshot
// before it touches local state. A payload that fails verification is
// discarded and the prior local vault stays in place.
func (e *Engine) verifyAndReplace(ctx context.Context, remote *models.VaultSyncData, key []byte) error {
	plaintext, err := e.crypto.DecryptPayload(remote.EncryptedPayload, key, remote.Checksum, remote.VaultID)
	if err != nil {
		return e.syncError("verify", remote.VaultID, err)
	}
	crypto.Zero(plaintext)

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.vaults.Replace(remote.VaultID, remote); err != nil {
		return e.syncError("replace", remote.VaultID, fmt.Errorf("replace local vault: %w", err))
	}
	return nil
}

// syncError tags a failure with the phase that produced it and a taxonomy
// code. Cancellation passes through untagged so callers can tell an abort
// from a failure.
func (e *Engine) syncError(phase, vaultID string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &models.SyncError{
		Code:    syncErrorCode(err),
		Phase:   phase,
		VaultID: vaultID,
		Err:     err,
	}
}

func syncErrorCode(err error) string {
	var integrityErr *models.IntegrityError
	if errors.As(err, &integrityErr) {
		return models.ErrCodeIntegrity
	}
	if errors.Is(err, models.ErrAuthenticationFailed) {
		return models.ErrCodeCrypto
	}

	switch models.ProviderErrorKindOf(err) {
	case models.ProviderNetworkError:
		return models.ErrCodeNetwork
	case models.ProviderAuthExpired:
		return models.ErrCodeAuth
	case models.ProviderQuotaExceeded:
		return models.ErrCodeQuota
	case models.ProviderNotFound:
		return models.ErrCodeNotFound
	}

	// What remains is local I/O: vault store and metadata failures.
	return models.ErrCodeState
}

// withRetry executes a provider call with exponential backoff. Only
// NetworkError is transient; every other kind surfaces immediately.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	delay := e.retryDelay

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.WithFields(map[string]interface{}{
				"op":      op,
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying provider call")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var pe *models.ProviderError
		if !errors.As(err, &pe) || !pe.Retryable() {
			return err
		}
	}

	return fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
}
