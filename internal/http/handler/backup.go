package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/backup"

	"github.com/go-chi/chi/v5"
)

type BackupHandler struct {
	Jobs     *backup.Manager
	Exporter *backup.Exporter
	Source   backup.DataSource
}

// Export accepts a backup request and detaches the pipeline from the
// request cycle: the handler answers 202 and the job record is the only
// channel back to the client.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	email, err := h.Source.UserEmail(r.Context(), uid)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	job, err := h.Jobs.CreateExclusive(
		backup.GenerateJobID("backup"),
		backup.TypeExport,
		uid,
		map[string]any{"recipient": email},
	)
	if err != nil {
		var active *backup.ActiveJobError
		if errors.As(err, &active) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    "a backup export is already in progress",
				"job_id":   active.Active.ID,
				"status":   active.Active.Status,
				"progress": active.Active.Progress,
			})
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	go h.Exporter.Run(context.Background(), job.ID, uid)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":         job.ID,
		"status":         job.Status,
		"estimated_time": "2-5 minutes",
		"user_email":     email,
		"created_at":     job.CreatedAt,
	})
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	jobID := chi.URLParam(r, "jobID")

	job := h.Jobs.GetJob(jobID)
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if job.UserID != uid {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, jobView(job))
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	jobs := h.Jobs.GetUserJobs(uid)
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobView(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func jobView(j *backup.Job) map[string]any {
	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return map[string]any{
		"job_id":       j.ID,
		"status":       j.Status,
		"progress":     j.Progress,
		"created_at":   j.CreatedAt,
		"started_at":   j.StartedAt,
		"completed_at": j.CompletedAt,
		"elapsed_time": int(end.Sub(j.CreatedAt).Seconds()),
		"error":        j.Error,
		"result":       j.Result,
	}
}
