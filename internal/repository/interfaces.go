package repository

import "birdwatch/internal/model"

// ArtifactRepository records which capture files are live and who owns them.
type ArtifactRepository interface {
	// Create operations
	Insert(artifact *model.Artifact) (int64, error)

	// Read operations
	GetByConnection(connectionID string) ([]model.Artifact, error)
	GetAll() ([]model.Artifact, error)
	Count() (int, error)

	// Delete operations
	DeleteByPath(path string) error
	DeleteByConnection(connectionID string) error
	DeleteAll() error
}
