package backup

import (
	"maps"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TypeExport is the only job type today; the manager itself is type-agnostic.
const TypeExport = "backup_export"

// Job is one tracked unit of asynchronous work. The in-memory table owns
// the record; the JSON file under the manager's directory is a best-effort
// mirror used for crash recovery.
type Job struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	UserID      string         `json:"user_id"`
	Status      Status         `json:"status"`
	Progress    int            `json:"progress"`
	Error       string         `json:"error,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func (j *Job) clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	c.Result = maps.Clone(j.Result)
	c.Metadata = maps.Clone(j.Metadata)
	return &c
}
