package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

// JSONStore implements file-based metadata storage: one JSON file per
// vault, written atomically with a backup of the previous version.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	mu sync.RWMutex
}

// NewJSONStore creates a JSON-based metadata store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_state_store"),
	}, nil
}

// Load reads metadata from its JSON file.
func (s *JSONStore) Load(vaultID string) (*models.SyncMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.metaPath(vaultID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrStateNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		if meta, err := s.loadBackup(vaultID); err == nil {
			s.logger.WithField("vault_id", vaultID).Warn("Loaded metadata from backup due to corruption")
			return meta, nil
		}
		return nil, ErrStateCorrupt
	}

	if rec.Checksum != "" {
		verification := record{
			SyncMetadata:  rec.SyncMetadata,
			SchemaVersion: rec.SchemaVersion,
			SavedAt:       rec.SavedAt,
		}
		verifyData, _ := json.Marshal(verification)
		sum := sha256.Sum256(verifyData)
		calculated := hex.EncodeToString(sum[:])

		if calculated != rec.Checksum {
			s.logger.WithFields(map[string]interface{}{
				"expected": rec.Checksum,
				"actual":   calculated,
			}).Error("Metadata checksum mismatch")

			if meta, err := s.loadBackup(vaultID); err == nil {
				return meta, nil
			}
			return nil, ErrStateCorrupt
		}
	}

	return rec.SyncMetadata, nil
}

// Save writes metadata atomically: temp file, fsync, rename.
func (s *JSONStore) Save(vaultID string, meta *models.SyncMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.metaPath(vaultID)

	s.logger.WithFields(map[string]interface{}{
		"vault_id": vaultID,
		"status":   meta.Status,
	}).Debug("Saving sync metadata")

	rec := record{
		SyncMetadata:  meta,
		SchemaVersion: CurrentSchemaVersion,
		SavedAt:       time.Now().UTC(),
	}

	checksumData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal metadata for checksum: %w", err)
	}
	sum := sha256.Sum256(checksumData)
	rec.Checksum = hex.EncodeToString(sum[:])

	jsonData, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	// Keep the previous version around for corruption recovery.
	if _, err := os.Stat(path); err == nil {
		if err := s.copyFile(path, path+".backup"); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Reset removes metadata for a vault.
func (s *JSONStore) Reset(vaultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("vault_id", vaultID).Info("Resetting sync metadata")

	path := s.metaPath(vaultID)
	_ = os.Remove(path)
	_ = os.Remove(path + ".backup")

	return nil
}

// List returns all vault IDs with stored metadata.
func (s *JSONStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var vaultIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".json" && !strings.HasSuffix(name, ".backup") {
			vaultIDs = append(vaultIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return vaultIDs, nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Helper methods

func (s *JSONStore) metaPath(vaultID string) string {
	return filepath.Join(s.baseDir, vaultID+".json")
}

func (s *JSONStore) loadBackup(vaultID string) (*models.SyncMetadata, error) {
	data, err := os.ReadFile(s.metaPath(vaultID) + ".backup")
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return rec.SyncMetadata, nil
}

func (s *JSONStore) copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
