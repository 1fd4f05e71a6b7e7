package backup_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/internal/backup"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, retention time.Duration) (*backup.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := backup.NewManager(dir, retention, zerolog.Nop())
	require.NoError(t, err)
	return m, dir
}

func statusPtr(s backup.Status) *backup.Status { return &s }

func progressPtr(n int) *int { return &n }

func writeJobFile(t *testing.T, dir string, j backup.Job) {
	t.Helper()
	raw, err := json.Marshal(j)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, j.ID+".json"), raw, 0o644))
}

func TestCreateJob_Defaults(t *testing.T) {
	m, dir := newManager(t, 24*time.Hour)

	j, err := m.CreateJob("j1", backup.TypeExport, "u1", map[string]any{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, backup.StatusPending, j.Status)
	assert.Equal(t, 0, j.Progress)
	assert.Nil(t, j.StartedAt)
	assert.Nil(t, j.CompletedAt)
	assert.False(t, j.CreatedAt.IsZero())

	// the durable mirror is written immediately
	raw, err := os.ReadFile(filepath.Join(dir, "j1.json"))
	require.NoError(t, err)
	var onDisk backup.Job
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "j1", onDisk.ID)
	assert.Equal(t, backup.StatusPending, onDisk.Status)
}

func TestCreateJob_DuplicateID(t *testing.T) {
	m, _ := newManager(t, 24*time.Hour)

	_, err := m.CreateJob("j1", backup.TypeExport, "u1", nil)
	require.NoError(t, err)

	_, err = m.CreateJob("j1", backup.TypeExport, "u2", nil)
	require.ErrorIs(t, err, backup.ErrDuplicateID)
}

func TestCreateExclusive_RejectsActiveJob(t *testing.T) {
	m, _ := newManager(t, 24*time.Hour)

	first, err := m.CreateExclusive("j1", backup.TypeExport, "u1", nil)
	require.NoError(t, err)

	_, err = m.CreateExclusive("j2", backup.TypeExport, "u1", nil)
	require.ErrorIs(t, err, backup.ErrActiveJob)
	var active *backup.ActiveJobError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, first.ID, active.Active.ID)

	// a different user is unaffected
	_, err = m.CreateExclusive("j3", backup.TypeExport, "u2", nil)
	require.NoError(t, err)

	// once the first job finishes, the user may start another
	_, err = m.UpdateJob("j1", backup.Patch{Status: statusPtr(backup.StatusFailed)})
	require.NoError(t, err)
	_, err = m.CreateExclusive("j4", backup.TypeExport, "u1", nil)
	require.NoError(t, err)
}

func TestUpdateJob_StampsOnce(t *testing.T) {
	m, _ := newManager(t, 24*time.Hour)

	_, err := m.CreateJob("j1", backup.TypeExport, "u1", nil)
	require.NoError(t, err)

	j, err := m.UpdateJob("j1", backup.Patch{Status: statusPtr(backup.StatusProcessing), Progress: progressPtr(10)})
	require.NoError(t, err)
	require.NotNil(t, j.StartedAt)
	started := *j.StartedAt

	j, err = m.UpdateJob("j1", backup.Patch{Status: statusPtr(backup.StatusProcessing), Progress: progressPtr(60)})
	require.NoError(t, err)
	require.NotNil(t, j.StartedAt)
	assert.Equal(t, started, *j.StartedAt, "startedAt is stamped exactly once")
	assert.Equal(t, 60, j.Progress)

	j, err = m.UpdateJob("j1", backup.Patch{Status: statusPtr(backup.StatusCompleted), Progress: progressPtr(100)})
	require.NoError(t, err)
	require.NotNil(t, j.CompletedAt)
	assert.Equal(t, 100, j.Progress)

	// terminal records are immutable, for status and data patches alike
	_, err = m.UpdateJob("j1", backup.Patch{Status: statusPtr(backup.StatusProcessing)})
	require.ErrorIs(t, err, backup.ErrTerminal)
	_, err = m.UpdateJob("j1", backup.Patch{Progress: progressPtr(1)})
	require.ErrorIs(t, err, backup.ErrTerminal)
	errMsg := "late"
	_, err = m.UpdateJob("j1", backup.Patch{Error: &errMsg, Result: map[string]any{"k": "v"}})
	require.ErrorIs(t, err, backup.ErrTerminal)

	j = m.GetJob("j1")
	require.NotNil(t, j)
	assert.Equal(t, 100, j.Progress)
	assert.Empty(t, j.Error)
	assert.Nil(t, j.Result)
}

func TestUpdateJob_NotFound(t *testing.T) {
	m, _ := newManager(t, 24*time.Hour)

	_, err := m.UpdateJob("nope", backup.Patch{Progress: progressPtr(1)})
	require.ErrorIs(t, err, backup.ErrNotFound)
}

func TestGetUserJobs_NewestFirst(t *testing.T) {
	m, _ := newManager(t, 24*time.Hour)

	for _, id := range []string{"j1", "j2", "j3"} {
		_, err := m.CreateJob(id, backup.TypeExport, "u1", nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := m.CreateJob("other", backup.TypeExport, "u2", nil)
	require.NoError(t, err)

	jobs := m.GetUserJobs("u1")
	require.Len(t, jobs, 3)
	assert.Equal(t, "j3", jobs[0].ID)
	assert.Equal(t, "j2", jobs[1].ID)
	assert.Equal(t, "j1", jobs[2].ID)
}

func TestDeleteJob_Tolerant(t *testing.T) {
	m, dir := newManager(t, 24*time.Hour)

	_, err := m.CreateJob("j1", backup.TypeExport, "u1", nil)
	require.NoError(t, err)

	m.DeleteJob("j1")
	assert.Nil(t, m.GetJob("j1"))
	_, statErr := os.Stat(filepath.Join(dir, "j1.json"))
	assert.True(t, os.IsNotExist(statErr))

	// absent jobs are tolerated
	m.DeleteJob("j1")
	m.DeleteJob("never-existed")
}

func TestCleanupOldJobs_Retention(t *testing.T) {
	m, _ := newManager(t, 50*time.Millisecond)

	_, err := m.CreateJob("old", backup.TypeExport, "u1", nil)
	require.NoError(t, err)
	_, err = m.UpdateJob("old", backup.Patch{Status: statusPtr(backup.StatusCompleted)})
	require.NoError(t, err)

	_, err = m.CreateJob("active", backup.TypeExport, "u2", nil)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	removed := m.CleanupOldJobs()
	assert.Equal(t, 1, removed)
	assert.Nil(t, m.GetJob("old"))
	assert.NotNil(t, m.GetJob("active"), "non-terminal jobs are never swept")
}

func TestCleanupOldJobs_SweepsOrphanedFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	expired := now.Add(-25 * time.Hour)
	fresh := now.Add(-23 * time.Hour)
	writeJobFile(t, dir, backup.Job{
		ID: "expired", Type: backup.TypeExport, UserID: "u1",
		Status: backup.StatusCompleted, CreatedAt: expired, CompletedAt: &expired,
	})
	writeJobFile(t, dir, backup.Job{
		ID: "fresh", Type: backup.TypeExport, UserID: "u1",
		Status: backup.StatusCompleted, CreatedAt: fresh, CompletedAt: &fresh,
	})

	m, err := backup.NewManager(dir, 24*time.Hour, zerolog.Nop())
	require.NoError(t, err)

	removed := m.CleanupOldJobs()
	assert.Equal(t, 1, removed)

	_, statErr := os.Stat(filepath.Join(dir, "expired.json"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "fresh.json"))
	assert.NoError(t, statErr)
}

func TestNewManager_FailsInterruptedJobs(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeJobFile(t, dir, backup.Job{
		ID: "stuck", Type: backup.TypeExport, UserID: "u1",
		Status: backup.StatusProcessing, Progress: 40, CreatedAt: now,
	})
	done := now.Add(-time.Hour)
	writeJobFile(t, dir, backup.Job{
		ID: "closed", Type: backup.TypeExport, UserID: "u1",
		Status: backup.StatusCompleted, CreatedAt: now, CompletedAt: &done,
	})

	m, err := backup.NewManager(dir, 24*time.Hour, zerolog.Nop())
	require.NoError(t, err)

	stuck := m.GetJob("stuck")
	require.NotNil(t, stuck)
	assert.Equal(t, backup.StatusFailed, stuck.Status)
	assert.Equal(t, "interrupted by restart", stuck.Error)
	require.NotNil(t, stuck.CompletedAt)

	// and the user can immediately start a new export
	_, err = m.CreateExclusive("next", backup.TypeExport, "u1", nil)
	require.NoError(t, err)

	assert.Nil(t, m.GetJob("closed"), "terminal jobs are not reloaded")
}

func TestGenerateJobID(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		id := backup.GenerateJobID("backup")
		assert.True(t, strings.HasPrefix(id, "backup_"))
		assert.Len(t, strings.Split(id, "_"), 3)
		_, dup := seen[id]
		assert.False(t, dup, "ids must not collide")
		seen[id] = struct{}{}
	}
}
