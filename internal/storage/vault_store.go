// Package storage owns the on-disk vault records: header, wrapped key,
// password hash, and the encrypted payload snapshot sync exchanges with
// the cloud. All writes are atomic (temp file, fsync, rename).
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

// ErrVaultNotFound is returned when no record exists for a vault ID.
var ErrVaultNotFound = errors.New("vault not found")

const (
	headerFile   = "header.json"
	keyFile      = "key.bin"
	hashFile     = "password.hash"
	snapshotFile = "snapshot.json"
)

// VaultFileStore keeps one directory per vault under a base directory.
type VaultFileStore struct {
	baseDir  string
	deviceID string
	logger   *events.Logger
}

// NewVaultFileStore creates a vault file store.
func NewVaultFileStore(baseDir, deviceID string, logger *events.Logger) (*VaultFileStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &VaultFileStore{
		baseDir:  absPath,
		deviceID: deviceID,
		logger:   logger.WithField("component", "vault_store"),
	}, nil
}

// CreateVault persists a freshly created vault: header, wrapped key,
// password hash, and an initial empty-payload snapshot.
func (s *VaultFileStore) CreateVault(header *models.VaultHeader, wrappedKey []byte, passwordHash string, payload []byte) error {
	dir, err := s.vaultDir(header.VaultID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}

	if err := s.writeHeader(header); err != nil {
		return err
	}
	if err := s.writeAtomic(filepath.Join(dir, keyFile), wrappedKey); err != nil {
		return fmt.Errorf("write wrapped key: %w", err)
	}
	if err := s.writeAtomic(filepath.Join(dir, hashFile), []byte(passwordHash)); err != nil {
		return fmt.Errorf("write password hash: %w", err)
	}

	snapshot := &models.VaultSyncData{
		VaultID:          header.VaultID,
		EncryptedPayload: payload,
		Timestamp:        header.ModifiedAt,
		DeviceID:         s.deviceID,
		Checksum:         header.Checksum,
		Version:          1,
	}
	if err := s.Replace(header.VaultID, snapshot); err != nil {
		return err
	}

	s.logger.WithField("vault_id", header.VaultID).Info("Vault created on disk")
	return nil
}

// LoadHeader reads the vault header.
func (s *VaultFileStore) LoadHeader(vaultID string) (*models.VaultHeader, error) {
	dir, err := s.vaultDir(vaultID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, headerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var header models.VaultHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	return &header, nil
}

// LoadWrappedKey reads the wrapped vault key.
func (s *VaultFileStore) LoadWrappedKey(vaultID string) ([]byte, error) {
	dir, err := s.vaultDir(vaultID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, keyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("read wrapped key: %w", err)
	}
	return data, nil
}

// LoadPasswordHash reads the stored password hash string.
func (s *VaultFileStore) LoadPasswordHash(vaultID string) (string, error) {
	dir, err := s.vaultDir(vaultID)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(dir, hashFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrVaultNotFound
		}
		return "", fmt.Errorf("read password hash: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ReplaceKeyMaterial persists an updated header and wrapped key, used
// after legacy migration and password rotation. The key is written before
// the header so a crash in between leaves the old header pointing at a
// key it can still describe being replaced on the next unlock.
func (s *VaultFileStore) ReplaceKeyMaterial(header *models.VaultHeader, wrappedKey []byte) error {
	dir, err := s.vaultDir(header.VaultID)
	if err != nil {
		return err
	}

	if err := s.writeAtomic(filepath.Join(dir, keyFile), wrappedKey); err != nil {
		return fmt.Errorf("write wrapped key: %w", err)
	}
	if err := s.writeHeader(header); err != nil {
		return err
	}

	s.logger.WithField("vault_id", header.VaultID).Info("Replaced vault key material")
	return nil
}

// ReplacePasswordHash persists a new password hash after rotation.
func (s *VaultFileStore) ReplacePasswordHash(vaultID, passwordHash string) error {
	dir, err := s.vaultDir(vaultID)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(filepath.Join(dir, hashFile), []byte(passwordHash)); err != nil {
		return fmt.Errorf("write password hash: %w", err)
	}
	return nil
}

// Load returns the current encrypted snapshot for a vault.
func (s *VaultFileStore) Load(vaultID string) (*models.VaultSyncData, error) {
	dir, err := s.vaultDir(vaultID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot models.VaultSyncData
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snapshot, nil
}

// Replace atomically replaces the local snapshot.
func (s *VaultFileStore) Replace(vaultID string, snapshot *models.VaultSyncData) error {
	dir, err := s.vaultDir(vaultID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.writeAtomic(filepath.Join(dir, snapshotFile), data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"vault_id": vaultID,
		"version":  snapshot.Version,
		"size":     len(snapshot.EncryptedPayload),
	}).Debug("Replaced vault snapshot")

	return nil
}

// SavePayload records a locally edited payload as a new snapshot version.
func (s *VaultFileStore) SavePayload(vaultID string, blob []byte, checksum string) error {
	current, err := s.Load(vaultID)
	if err != nil {
		return err
	}

	snapshot := &models.VaultSyncData{
		VaultID:          vaultID,
		EncryptedPayload: blob,
		Timestamp:        time.Now().UTC(),
		DeviceID:         s.deviceID,
		Checksum:         checksum,
		Version:          current.Version + 1,
	}
	return s.Replace(vaultID, snapshot)
}

// List returns all vault IDs present on disk.
func (s *VaultFileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read base directory: %w", err)
	}

	var vaultIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			vaultIDs = append(vaultIDs, entry.Name())
		}
	}
	return vaultIDs, nil
}

// Delete removes every record for a vault.
func (s *VaultFileStore) Delete(vaultID string) error {
	dir, err := s.vaultDir(vaultID)
	if err != nil {
		return err
	}

	s.logger.WithField("vault_id", vaultID).Info("Deleting vault records")
	return os.RemoveAll(dir)
}

// Helper methods

// vaultDir validates the vault ID and returns its directory. IDs become
// directory names, so separators and traversal sequences are rejected.
func (s *VaultFileStore) vaultDir(vaultID string) (string, error) {
	if vaultID == "" {
		return "", fmt.Errorf("empty vault ID")
	}
	if strings.ContainsAny(vaultID, "/\\") || strings.Contains(vaultID, "..") || strings.ContainsRune(vaultID, 0) {
		return "", fmt.Errorf("invalid vault ID: %q", vaultID)
	}
	return filepath.Join(s.baseDir, vaultID), nil
}

func (s *VaultFileStore) writeHeader(header *models.VaultHeader) error {
	dir, err := s.vaultDir(header.VaultID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	if err := s.writeAtomic(filepath.Join(dir, headerFile), data); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (s *VaultFileStore) writeAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
