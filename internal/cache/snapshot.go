// package cache persists the assembled library across two storage
// tiers: a primary SQLite store and a flat key/value fallback.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/chorus/internal/library"
)

// SnapshotRepository is the primary cache tier, backed by SQLite.
//
// One logical record per key; every save fully supersedes the previous
// snapshot. There is no versioning or merge.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a repository with the given database connection.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save upserts the snapshot record.
func (r *SnapshotRepository) Save(record *Record) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot data: %w", err)
	}

	var userID, userName sql.NullString
	if record.User != nil {
		userID = sql.NullString{String: record.User.ID, Valid: true}
		userName = sql.NullString{String: record.User.DisplayName, Valid: true}
	}

	query := `
		INSERT INTO library_snapshots (key, id, data, user_id, user_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			id = excluded.id,
			data = excluded.data,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			created_at = excluded.created_at
	`

	if _, err := r.db.Exec(query, record.Key, record.ID, string(data), userID, userName, record.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// Get retrieves the snapshot stored under key, or nil when absent.
func (r *SnapshotRepository) Get(key string) (*Record, error) {
	query := `
		SELECT key, id, data, user_id, user_name, created_at
		FROM library_snapshots
		WHERE key = ?
	`

	var (
		recordKey string
		recordID  string
		data      string
		userID    sql.NullString
		userName  sql.NullString
		createdAt int64
	)

	err := r.db.QueryRow(query, key).Scan(&recordKey, &recordID, &data, &userID, &userName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	record := &Record{Key: recordKey, ID: recordID, CreatedAt: createdAt}

	if err := json.Unmarshal([]byte(data), &record.Data); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot data: %w", err)
	}

	if userID.Valid {
		record.User = &library.User{ID: userID.String, DisplayName: userName.String}
	}

	return record, nil
}

// Delete removes the snapshot stored under key. Absent keys are a no-op.
func (r *SnapshotRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM library_snapshots WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
