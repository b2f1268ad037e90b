package state

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

// SQLiteStore implements SQLite-based metadata storage, for installs that
// track many vaults.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite metadata store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_state_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sync_metadata (
        vault_id TEXT PRIMARY KEY,
        status TEXT NOT NULL,
        last_sync_timestamp TIMESTAMP,
        cloud_file_id TEXT,
        cloud_modified_time TIMESTAMP,
        local_modified_time TIMESTAMP,
        conflict_detected INTEGER NOT NULL DEFAULT 0,
        pending_changes INTEGER NOT NULL DEFAULT 0,
        last_error TEXT,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Load retrieves metadata from the database.
func (s *SQLiteStore) Load(vaultID string) (*models.SyncMetadata, error) {
	var meta models.SyncMetadata
	var lastSync, cloudModified, localModified sql.NullTime
	var cloudFileID, lastError sql.NullString

	err := s.db.QueryRow(`
        SELECT status, last_sync_timestamp, cloud_file_id, cloud_modified_time,
               local_modified_time, conflict_detected, pending_changes, last_error
        FROM sync_metadata
        WHERE vault_id = ?
    `, vaultID).Scan(&meta.Status, &lastSync, &cloudFileID, &cloudModified,
		&localModified, &meta.ConflictDetected, &meta.PendingChanges, &lastError)

	if err == sql.ErrNoRows {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}

	meta.VaultID = vaultID
	if lastSync.Valid {
		meta.LastSyncTimestamp = lastSync.Time
	}
	if cloudModified.Valid {
		meta.CloudModifiedTime = cloudModified.Time
	}
	if localModified.Valid {
		meta.LocalModifiedTime = localModified.Time
	}
	if cloudFileID.Valid {
		meta.CloudFileID = cloudFileID.String
	}
	if lastError.Valid {
		meta.LastError = lastError.String
	}

	return &meta, nil
}

// Save persists metadata to the database.
func (s *SQLiteStore) Save(vaultID string, meta *models.SyncMetadata) error {
	s.logger.WithFields(map[string]interface{}{
		"vault_id": vaultID,
		"status":   meta.Status,
	}).Debug("Saving metadata to SQLite")

	_, err := s.db.Exec(`
        INSERT INTO sync_metadata (vault_id, status, last_sync_timestamp, cloud_file_id,
            cloud_modified_time, local_modified_time, conflict_detected, pending_changes,
            last_error, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(vault_id) DO UPDATE SET
            status = excluded.status,
            last_sync_timestamp = excluded.last_sync_timestamp,
            cloud_file_id = excluded.cloud_file_id,
            cloud_modified_time = excluded.cloud_modified_time,
            local_modified_time = excluded.local_modified_time,
            conflict_detected = excluded.conflict_detected,
            pending_changes = excluded.pending_changes,
            last_error = excluded.last_error,
            updated_at = CURRENT_TIMESTAMP
    `, vaultID, meta.Status, meta.LastSyncTimestamp, meta.CloudFileID,
		meta.CloudModifiedTime, meta.LocalModifiedTime, meta.ConflictDetected,
		meta.PendingChanges, meta.LastError)

	if err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}

	return nil
}

// Reset removes metadata for a vault.
func (s *SQLiteStore) Reset(vaultID string) error {
	s.logger.WithField("vault_id", vaultID).Info("Resetting metadata in SQLite")

	_, err := s.db.Exec("DELETE FROM sync_metadata WHERE vault_id = ?", vaultID)
	if err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}

	return nil
}

// List returns all vault IDs.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query("SELECT vault_id FROM sync_metadata ORDER BY vault_id")
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", err)
	}
	defer rows.Close()

	var vaultIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vault ID: %w", err)
		}
		vaultIDs = append(vaultIDs, id)
	}

	return vaultIDs, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
