package sqlite

import (
	"database/sql"
	"fmt"

	"birdwatch/internal/model"
)

// ArtifactRepository implements repository.ArtifactRepository for SQLite.
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new SQLite artifact repository.
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Insert records a live artifact. Re-inserting a path replaces the old row.
func (r *ArtifactRepository) Insert(a *model.Artifact) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT OR REPLACE INTO artifacts (path, connection_id, kind, created_at)
		VALUES (?, ?, ?, ?)
	`, a.Path, a.ConnectionID, string(a.Kind), a.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artifact: %w", err)
	}

	return result.LastInsertId()
}

// GetByConnection returns the artifacts of one connection in creation order.
func (r *ArtifactRepository) GetByConnection(connectionID string) ([]model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, path, connection_id, kind, created_at
		FROM artifacts WHERE connection_id = ? ORDER BY id
	`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	return scanArtifacts(rows)
}

// GetAll returns every recorded artifact.
func (r *ArtifactRepository) GetAll() ([]model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, path, connection_id, kind, created_at
		FROM artifacts ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	return scanArtifacts(rows)
}

// Count returns the number of recorded artifacts.
func (r *ArtifactRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM artifacts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	return count, nil
}

// DeleteByPath removes one artifact row. A missing row is not an error.
func (r *ArtifactRepository) DeleteByPath(path string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// DeleteByConnection removes every row owned by a connection.
func (r *ArtifactRepository) DeleteByConnection(connectionID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts WHERE connection_id = ?`, connectionID); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return nil
}

// DeleteAll empties the ledger.
func (r *ArtifactRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts`); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return nil
}

func scanArtifacts(rows *sql.Rows) ([]model.Artifact, error) {
	artifacts := []model.Artifact{}
	for rows.Next() {
		var a model.Artifact
		var kind string
		if err := rows.Scan(&a.ID, &a.Path, &a.ConnectionID, &kind, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.Kind = model.ArtifactKind(kind)
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
