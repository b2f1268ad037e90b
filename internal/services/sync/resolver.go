package sync

import (
	"fmt"
	"time"

	"github.com/genvault/genvault/internal/crypto"
	"github.com/genvault/genvault/internal/models"
)

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	StrategyLocalWins  Strategy = "local_wins"
	StrategyRemoteWins Strategy = "remote_wins"
	StrategyNewestWins Strategy = "newest_wins"
	StrategySmartMerge Strategy = "smart_merge"

	// StrategyManual is a marker, not a decision: the caller presents both
	// versions to the user and calls again with one of the other strategies.
	StrategyManual Strategy = "manual"
)

// PayloadMerger merges two encrypted payloads at the entry level. Only the
// component holding the vault key can implement it.
type PayloadMerger interface {
	Merge(local, remote models.VaultSyncData) (models.VaultSyncData, error)
}

// Resolve maps (local, remote, strategy) to the winning version. It mutates
// nothing; committing the winner is the engine's job.
//
// NEWEST_WINS breaks timestamp ties toward local, deterministically.
// SMART_MERGE requires a merger; payload formats that cannot be merged
// safely fail with ErrNotMergeable rather than guessing.
func Resolve(local, remote models.VaultSyncData, strategy Strategy, merger PayloadMerger) (models.VaultSyncData, error) {
	switch strategy {
	case StrategyLocalWins:
		return local, nil

	case StrategyRemoteWins:
		return remote, nil

	case StrategyNewestWins:
		if remote.Timestamp.After(local.Timestamp) {
			return remote, nil
		}
		return local, nil

	case StrategySmartMerge:
		if merger == nil {
			return models.VaultSyncData{}, models.ErrNotMergeable
		}
		return merger.Merge(local, remote)

	case StrategyManual:
		return models.VaultSyncData{}, models.ErrManualResolution

	default:
		return models.VaultSyncData{}, fmt.Errorf("unknown strategy: %s", strategy)
	}
}

// entryMerger implements PayloadMerger over the entry-list payload format:
// union of entries, latest ModifiedAt wins on id collisions.
type entryMerger struct {
	crypto   *crypto.Engine
	key      []byte
	deviceID string
	now      func() time.Time
}

func (m *entryMerger) Merge(local, remote models.VaultSyncData) (models.VaultSyncData, error) {
	localEntries, err := m.decode(local)
	if err != nil {
		return models.VaultSyncData{}, err
	}
	remoteEntries, err := m.decode(remote)
	if err != nil {
		return models.VaultSyncData{}, err
	}

	byID := make(map[string]models.Entry, len(localEntries.Entries))
	order := make([]string, 0, len(localEntries.Entries))

	for _, entry := range localEntries.Entries {
		byID[entry.ID] = entry
		order = append(order, entry.ID)
	}
	for _, entry := range remoteEntries.Entries {
		existing, seen := byID[entry.ID]
		if !seen {
			byID[entry.ID] = entry
			order = append(order, entry.ID)
			continue
		}
		if entry.ModifiedAt.After(existing.ModifiedAt) {
			byID[entry.ID] = entry
		}
	}

	merged := models.EntryPayload{Entries: make([]models.Entry, 0, len(order))}
	for _, id := range order {
		merged.Entries = append(merged.Entries, byID[id])
	}

	plaintext, err := merged.Encode()
	if err != nil {
		return models.VaultSyncData{}, fmt.Errorf("encode merged payload: %w", err)
	}
	defer crypto.Zero(plaintext)

	blob, checksum, err := m.crypto.EncryptPayload(plaintext, m.key)
	if err != nil {
		return models.VaultSyncData{}, fmt.Errorf("encrypt merged payload: %w", err)
	}

	version := local.Version
	if remote.Version > version {
		version = remote.Version
	}

	return models.VaultSyncData{
		VaultID:          local.VaultID,
		EncryptedPayload: blob,
		Timestamp:        m.now().UTC(),
		DeviceID:         m.deviceID,
		Checksum:         checksum,
		Version:          version + 1,
	}, nil
}

func (m *entryMerger) decode(data models.VaultSyncData) (*models.EntryPayload, error) {
	plaintext, err := m.crypto.DecryptPayload(data.EncryptedPayload, m.key, data.Checksum, data.VaultID)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(plaintext)

	payload, err := models.ParseEntryPayload(plaintext)
	if err != nil {
		return nil, models.ErrNotMergeable
	}
	return payload, nil
}
