package model

import "time"

// ArtifactKind tells a stored frame apart from its annotated copy.
type ArtifactKind string

const (
	KindRaw       ArtifactKind = "raw"
	KindAnnotated ArtifactKind = "annotated"
)

// Artifact is an image file on disk owned by exactly one connection.
type Artifact struct {
	ID           int64        `json:"id,omitempty"`
	Path         string       `json:"path"`
	ConnectionID string       `json:"connection_id"`
	Kind         ArtifactKind `json:"kind"`
	CreatedAt    time.Time    `json:"created_at"`
}
