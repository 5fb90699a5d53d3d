// Package session tracks live client connections and the capture files each
// one owns. A file recorded for a connection never outlives that connection:
// it is removed on an explicit delete or when the connection is torn down.
package session

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"birdwatch/internal/logger"
	"birdwatch/internal/model"
	"birdwatch/internal/repository"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Session is one live connection and its artifact list.
type Session struct {
	ID          string
	ConnectedAt time.Time

	mu        sync.Mutex
	artifacts []model.Artifact
	closed    bool
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Connections int `json:"connections"`
	Artifacts   int `json:"artifacts"`
}

type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	ledger   repository.ArtifactRepository
	logger   *logger.Logger
	now      func() time.Time
}

// NewManager creates a Manager. ledger may be nil.
func NewManager(ledger repository.ArtifactRepository, logger *logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
}

// Connect registers a new connection with an empty artifact list.
func (m *Manager) Connect() *Session {
	s := &Session{
		ID:          uuid.NewString(),
		ConnectedAt: m.now(),
		artifacts:   []model.Artifact{},
	}

	m.mutex.Lock()
	m.sessions[s.ID] = s
	total := len(m.sessions)
	m.mutex.Unlock()

	m.logger.WithConnection(s.ID).Info("Client connected. Total: %d", total)
	return s
}

func (m *Manager) get(connectionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.sessions[connectionID]
	return s, ok
}

// RecordArtifact appends a saved file to the connection's list.
func (m *Manager) RecordArtifact(connectionID, path string, kind model.ArtifactKind) (model.Artifact, error) {
	s, ok := m.get(connectionID)
	if !ok {
		return model.Artifact{}, fmt.Errorf("record %s: %w", path, ErrUnknownConnection)
	}

	a := model.Artifact{
		Path:         path,
		ConnectionID: connectionID,
		Kind:         kind,
		CreatedAt:    m.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Artifact{}, fmt.Errorf("record %s: %w", path, ErrUnknownConnection)
	}

	if m.ledger != nil {
		id, err := m.ledger.Insert(&a)
		if err != nil {
			m.logger.WithConnection(connectionID).Error("Ledger insert failed for %s: %v", path, err)
		} else {
			a.ID = id
		}
	}

	s.artifacts = append(s.artifacts, a)
	return a, nil
}

// Artifacts returns a copy of the connection's list, nil for an unknown connection.
func (m *Manager) Artifacts(connectionID string) []model.Artifact {
	s, ok := m.get(connectionID)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// DeleteArtifacts removes every file recorded for the connection and empties
// its list. Files that cannot be removed are logged and skipped. It returns
// the number of files actually deleted; an unknown connection yields 0.
func (m *Manager) DeleteArtifacts(connectionID string) int {
	s, ok := m.get(connectionID)
	if !ok {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return m.deleteLocked(s)
}

func (m *Manager) deleteLocked(s *Session) int {
	log := m.logger.WithConnection(s.ID)

	deleted := 0
	for _, a := range s.artifacts {
		if err := os.Remove(a.Path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				// The ledger row stays so the next sweep retries the file.
				log.Error("Failed to delete capture %s: %v", a.Path, err)
				continue
			}
			log.Warning("Capture already gone: %s", a.Path)
		} else {
			deleted++
		}
		m.forget(a.Path)
	}

	if len(s.artifacts) > 0 {
		log.Info("Deleted %d/%d captures", deleted, len(s.artifacts))
	}
	s.artifacts = []model.Artifact{}
	return deleted
}

func (m *Manager) forget(path string) {
	if m.ledger == nil {
		return
	}
	if err := m.ledger.DeleteByPath(path); err != nil {
		m.logger.Error("Ledger cleanup failed for %s: %v", path, err)
	}
}

// Teardown deletes the connection's files and forgets the connection.
// Calling it again, or for an unknown connection, is a no-op.
func (m *Manager) Teardown(connectionID string) int {
	s, ok := m.get(connectionID)
	if !ok {
		return 0
	}

	s.mu.Lock()
	deleted := 0
	if !s.closed {
		s.closed = true
		deleted = m.deleteLocked(s)
	}
	s.mu.Unlock()

	m.mutex.Lock()
	delete(m.sessions, connectionID)
	total := len(m.sessions)
	m.mutex.Unlock()

	m.logger.WithConnection(connectionID).Info("Client disconnected. Total: %d", total)
	return deleted
}

// ActiveConnections returns the number of registered connections.
func (m *Manager) ActiveConnections() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Stats() Stats {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	stats := Stats{Connections: len(sessions)}
	for _, s := range sessions {
		s.mu.Lock()
		stats.Artifacts += len(s.artifacts)
		s.mu.Unlock()
	}
	return stats
}

// SweepOrphans removes files left in the ledger by a previous process. It
// must run before the first Connect: every ledger row is treated as orphaned.
func (m *Manager) SweepOrphans() (int, error) {
	if m.ledger == nil {
		return 0, nil
	}

	orphans, err := m.ledger.GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to list orphaned captures: %w", err)
	}

	removed := 0
	for _, a := range orphans {
		if err := os.Remove(a.Path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				m.logger.Error("Failed to delete orphaned capture %s: %v", a.Path, err)
			}
			continue
		}
		removed++
	}

	if err := m.ledger.DeleteAll(); err != nil {
		return removed, fmt.Errorf("failed to clear ledger: %w", err)
	}

	if len(orphans) > 0 {
		m.logger.Info("Swept %d orphaned captures (%d ledger rows)", removed, len(orphans))
	}
	return removed, nil
}

// SweepConnection removes the files a single connection of a previous process
// left in the ledger. A connection that is registered here is refused.
func (m *Manager) SweepConnection(connectionID string) (int, error) {
	if m.ledger == nil {
		return 0, nil
	}
	if _, live := m.get(connectionID); live {
		return 0, fmt.Errorf("sweep %s: connection is live", connectionID)
	}

	orphans, err := m.ledger.GetByConnection(connectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to list captures of %s: %w", connectionID, err)
	}

	removed := 0
	for _, a := range orphans {
		if err := os.Remove(a.Path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				m.logger.Error("Failed to delete orphaned capture %s: %v", a.Path, err)
			}
			continue
		}
		removed++
	}

	if err := m.ledger.DeleteByConnection(connectionID); err != nil {
		return removed, fmt.Errorf("failed to clear ledger rows of %s: %w", connectionID, err)
	}
	return removed, nil
}
