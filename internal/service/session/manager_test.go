package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdwatch/internal/logger"
	"birdwatch/internal/model"
	"birdwatch/internal/repository/sqlite"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newLedger(t *testing.T) *sqlite.ArtifactRepository {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewArtifactRepository(db)
}

// ========================================
// Registry
// ========================================

func TestConnect_AssignsDistinctIDs(t *testing.T) {
	m := NewManager(nil, logger.NewDiscard())

	a := m.Connect()
	b := m.Connect()

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.ActiveConnections())
	assert.Empty(t, m.Artifacts(a.ID))
	assert.NotNil(t, m.Artifacts(a.ID))
}

func TestRecordArtifact_UnknownConnection(t *testing.T) {
	m := NewManager(nil, logger.NewDiscard())

	_, err := m.RecordArtifact("ghost", "/tmp/x.jpg", model.KindRaw)

	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestRecordArtifact_KeepsOrder(t *testing.T) {
	m := NewManager(nil, logger.NewDiscard())
	s := m.Connect()

	m.RecordArtifact(s.ID, "/c/1.jpg", model.KindRaw)
	m.RecordArtifact(s.ID, "/c/2.jpg", model.KindAnnotated)

	got := m.Artifacts(s.ID)
	require.Len(t, got, 2)
	assert.Equal(t, "/c/1.jpg", got[0].Path)
	assert.Equal(t, model.KindAnnotated, got[1].Kind)
	assert.Equal(t, s.ID, got[1].ConnectionID)
}

// ========================================
// Deletion
// ========================================

func TestDeleteArtifacts_OnlyOwnFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(nil, logger.NewDiscard())
	a := m.Connect()
	b := m.Connect()

	a1 := writeFile(t, dir, "a1.jpg")
	a2 := writeFile(t, dir, "a2.jpg")
	b1 := writeFile(t, dir, "b1.jpg")
	m.RecordArtifact(a.ID, a1, model.KindRaw)
	m.RecordArtifact(a.ID, a2, model.KindAnnotated)
	m.RecordArtifact(b.ID, b1, model.KindRaw)

	deleted := m.DeleteArtifacts(a.ID)

	assert.Equal(t, 2, deleted)
	assert.False(t, exists(a1))
	assert.False(t, exists(a2))
	assert.True(t, exists(b1))
	assert.Empty(t, m.Artifacts(a.ID))
	assert.Len(t, m.Artifacts(b.ID), 1)
	assert.Equal(t, 2, m.ActiveConnections(), "delete must not drop the connection")
}

func TestDeleteArtifacts_MissingFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(nil, logger.NewDiscard())
	s := m.Connect()

	present := writeFile(t, dir, "present.jpg")
	m.RecordArtifact(s.ID, filepath.Join(dir, "gone.jpg"), model.KindRaw)
	m.RecordArtifact(s.ID, present, model.KindRaw)

	deleted := m.DeleteArtifacts(s.ID)

	assert.Equal(t, 1, deleted)
	assert.False(t, exists(present))
	assert.Empty(t, m.Artifacts(s.ID))
}

func TestDeleteArtifacts_UnknownConnectionIsNoop(t *testing.T) {
	m := NewManager(nil, logger.NewDiscard())

	assert.Equal(t, 0, m.DeleteArtifacts("ghost"))
}

func TestDeleteArtifacts_EmptyListReturnsZero(t *testing.T) {
	m := NewManager(nil, logger.NewDiscard())
	s := m.Connect()

	assert.Equal(t, 0, m.DeleteArtifacts(s.ID))
}

// ========================================
// Teardown
// ========================================

func TestTeardown_RemovesFilesAndRegistration(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(nil, logger.NewDiscard())
	s := m.Connect()

	var paths []string
	for i := 0; i < 5; i++ {
		p := writeFile(t, dir, fmt.Sprintf("f%d.jpg", i))
		paths = append(paths, p)
		_, err := m.RecordArtifact(s.ID, p, model.KindRaw)
		require.NoError(t, err)
	}

	deleted := m.Teardown(s.ID)

	assert.Equal(t, 5, deleted)
	for _, p := range paths {
		assert.False(t, exists(p), p)
	}
	assert.Equal(t, 0, m.ActiveConnections())
	assert.Nil(t, m.Artifacts(s.ID))

	assert.Equal(t, 0, m.DeleteArtifacts(s.ID))
	assert.Equal(t, 0, m.Teardown(s.ID))

	_, err := m.RecordArtifact(s.ID, filepath.Join(dir, "late.jpg"), model.KindRaw)
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

// ========================================
// Concurrency
// ========================================

func TestRecordArtifact_ConcurrentConnections(t *testing.T) {
	m := NewManager(nil, logger.NewDiscard())

	const conns, perConn = 8, 25
	sessions := make([]*Session, conns)
	for i := range sessions {
		sessions[i] = m.Connect()
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			for j := 0; j < perConn; j++ {
				_, err := m.RecordArtifact(id, fmt.Sprintf("/c/%d_%d.jpg", i, j), model.KindRaw)
				assert.NoError(t, err)
			}
		}(i, s.ID)
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Len(t, m.Artifacts(s.ID), perConn)
	}
	assert.Equal(t, Stats{Connections: conns, Artifacts: conns * perConn}, m.Stats())
}

// ========================================
// Ledger
// ========================================

func TestLedger_MirrorsRecordsAndDeletes(t *testing.T) {
	dir := t.TempDir()
	ledger := newLedger(t)
	m := NewManager(ledger, logger.NewDiscard())
	a := m.Connect()
	b := m.Connect()

	rec, err := m.RecordArtifact(a.ID, writeFile(t, dir, "a.jpg"), model.KindRaw)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	m.RecordArtifact(b.ID, writeFile(t, dir, "b.jpg"), model.KindRaw)

	count, err := ledger.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	m.Teardown(a.ID)

	rows, err := ledger.GetAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ConnectionID)
}

func TestLedger_UndeletableFileKeepsItsRow(t *testing.T) {
	dir := t.TempDir()
	ledger := newLedger(t)
	m := NewManager(ledger, logger.NewDiscard())
	s := m.Connect()

	// A non-empty directory cannot be removed with os.Remove.
	stuck := filepath.Join(dir, "stuck")
	require.NoError(t, os.Mkdir(stuck, 0755))
	writeFile(t, stuck, "inner.jpg")

	m.RecordArtifact(s.ID, writeFile(t, dir, "ok.jpg"), model.KindRaw)
	m.RecordArtifact(s.ID, stuck, model.KindRaw)
	m.RecordArtifact(s.ID, filepath.Join(dir, "gone.jpg"), model.KindRaw)

	assert.Equal(t, 1, m.DeleteArtifacts(s.ID))
	assert.Empty(t, m.Artifacts(s.ID))

	rows, err := ledger.GetByConnection(s.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stuck, rows[0].Path)
}

func TestSweepConnection_OnlyThatConnection(t *testing.T) {
	dir := t.TempDir()
	ledger := newLedger(t)

	previous := NewManager(ledger, logger.NewDiscard())
	a := previous.Connect()
	b := previous.Connect()
	aFile := writeFile(t, dir, "a.jpg")
	bFile := writeFile(t, dir, "b.jpg")
	previous.RecordArtifact(a.ID, aFile, model.KindRaw)
	previous.RecordArtifact(b.ID, bFile, model.KindRaw)

	m := NewManager(ledger, logger.NewDiscard())
	removed, err := m.SweepConnection(a.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, exists(aFile))
	assert.True(t, exists(bFile))
	rows, err := ledger.GetAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ConnectionID)
}

func TestSweepConnection_RefusesLiveConnection(t *testing.T) {
	dir := t.TempDir()
	ledger := newLedger(t)
	m := NewManager(ledger, logger.NewDiscard())
	s := m.Connect()
	path := writeFile(t, dir, "live.jpg")
	m.RecordArtifact(s.ID, path, model.KindRaw)

	_, err := m.SweepConnection(s.ID)

	assert.Error(t, err)
	assert.True(t, exists(path))
	count, _ := ledger.Count()
	assert.Equal(t, 1, count)
}

func TestSweepOrphans_RemovesFilesFromPreviousRun(t *testing.T) {
	dir := t.TempDir()
	ledger := newLedger(t)

	previous := NewManager(ledger, logger.NewDiscard())
	s := previous.Connect()
	kept := writeFile(t, dir, "crash1.jpg")
	previous.RecordArtifact(s.ID, kept, model.KindRaw)
	previous.RecordArtifact(s.ID, filepath.Join(dir, "already_gone.jpg"), model.KindRaw)
	// No teardown: the process "crashed".

	m := NewManager(ledger, logger.NewDiscard())
	removed, err := m.SweepOrphans()

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, exists(kept))
	count, _ := ledger.Count()
	assert.Equal(t, 0, count)
}

func TestSweepOrphans_WithoutLedger(t *testing.T) {
	m := NewManager(nil, logger.NewDiscard())

	removed, err := m.SweepOrphans()

	assert.NoError(t, err)
	assert.Equal(t, 0, removed)
}
