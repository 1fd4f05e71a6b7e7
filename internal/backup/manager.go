package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager tracks jobs in memory and mirrors every mutation to one JSON
// file per job under dir. The map is authoritative for the life of the
// process; persistence failures are logged and ignored.
type Manager struct {
	dir       string
	retention time.Duration
	log       zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewManager(dir string, retention time.Duration, log zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	m := &Manager{
		dir:       dir,
		retention: retention,
		log:       log,
		jobs:      map[string]*Job{},
	}
	if err := m.loadFromDisk(); err != nil {
		return nil, err
	}
	return m, nil
}

// loadFromDisk rehydrates non-terminal jobs left behind by a previous
// process. Nothing resumes their actual work, so they are failed right
// away instead of sitting in processing forever. Terminal jobs are not
// reloaded; the cleanup sweep removes their files once the retention
// window passes.
func (m *Manager) loadFromDisk() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			m.log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable job file")
			continue
		}
		var j Job
		if err := json.Unmarshal(raw, &j); err != nil || j.ID == "" {
			m.log.Warn().Str("file", e.Name()).Msg("skipping malformed job file")
			continue
		}
		if j.Status.Terminal() {
			continue
		}

		now := time.Now()
		j.Status = StatusFailed
		j.Error = "interrupted by restart"
		j.CompletedAt = &now
		m.jobs[j.ID] = &j
		m.persist(&j)
		m.log.Info().Str("job", j.ID).Msg("failed interrupted job from previous run")
	}
	return nil
}

// CreateJob inserts a new pending job. The id must be globally unique;
// collisions are rejected.
func (m *Manager) CreateJob(id, typ, userID string, metadata map[string]any) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(id, typ, userID, metadata)
}

// CreateExclusive creates a job only if the user has no pending or
// processing job of the same type. Check and insert run under one lock,
// so two simultaneous requests cannot both pass.
func (m *Manager) CreateExclusive(id, typ, userID string, metadata map[string]any) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.UserID == userID && j.Type == typ && !j.Status.Terminal() {
			return nil, &ActiveJobError{Active: j.clone()}
		}
	}
	return m.createLocked(id, typ, userID, metadata)
}

func (m *Manager) createLocked(id, typ, userID string, metadata map[string]any) (*Job, error) {
	if _, ok := m.jobs[id]; ok {
		return nil, ErrDuplicateID
	}
	j := &Job{
		ID:        id,
		Type:      typ,
		UserID:    userID,
		Status:    StatusPending,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	m.jobs[id] = j
	m.persist(j)
	return j.clone(), nil
}

type Patch struct {
	Status   *Status
	Progress *int
	Error    *string
	Result   map[string]any
}

// UpdateJob merges a patch onto the record and re-persists it. StartedAt
// is stamped on the first transition into processing, CompletedAt on the
// first transition into a terminal state; neither is ever overwritten.
// Terminal records are immutable: any patch on one is rejected.
func (m *Manager) UpdateJob(id string, p Patch) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if j.Status.Terminal() {
		return nil, ErrTerminal
	}

	if p.Status != nil && *p.Status != j.Status {
		j.Status = *p.Status
		now := time.Now()
		if j.Status == StatusProcessing && j.StartedAt == nil {
			j.StartedAt = &now
		}
		if j.Status.Terminal() && j.CompletedAt == nil {
			j.CompletedAt = &now
		}
	}
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	if p.Result != nil {
		j.Result = p.Result
	}

	m.persist(j)
	return j.clone(), nil
}

func (m *Manager) GetJob(id string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	return j.clone()
}

// GetUserJobs returns the user's jobs, newest-first by creation time.
func (m *Manager) GetUserJobs(userID string) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*Job{}
	for _, j := range m.jobs {
		if j.UserID == userID {
			out = append(out, j.clone())
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// DeleteJob removes a job from tracking and from disk. Absent jobs are
// tolerated.
func (m *Manager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	if err := os.Remove(m.jobPath(id)); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Str("job", id).Msg("removing job file failed")
	}
}

// CleanupOldJobs removes every terminal job whose completion is older than
// the retention window, from memory and from disk. Orphaned terminal job
// files from earlier runs are swept too. Returns the number removed.
func (m *Manager) CleanupOldJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.retention)
	removed := 0

	for id, j := range m.jobs {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			if err := os.Remove(m.jobPath(id)); err != nil && !os.IsNotExist(err) {
				m.log.Warn().Err(err).Str("job", id).Msg("removing job file failed")
			}
			removed++
		}
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.log.Warn().Err(err).Msg("job directory sweep failed")
		return removed
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		if _, tracked := m.jobs[id]; tracked {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			continue
		}
		var j Job
		if err := json.Unmarshal(raw, &j); err != nil {
			continue
		}
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			if err := os.Remove(filepath.Join(m.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed
}

// RunCleanup sweeps expired jobs on a fixed interval until ctx ends.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupOldJobs(); n > 0 {
				m.log.Info().Int("removed", n).Msg("swept expired backup jobs")
			}
		}
	}
}

func (m *Manager) persist(j *Job) {
	raw, err := json.MarshalIndent(j, "", "  ")
	if err == nil {
		err = os.WriteFile(m.jobPath(j.ID), raw, 0o644)
	}
	if err != nil {
		// best effort: the in-memory record stays authoritative
		m.log.Warn().Err(err).Str("job", j.ID).Msg("job persistence failed")
	}
}

func (m *Manager) jobPath(id string) string {
	return filepath.Join(m.dir, id+".json")
}
