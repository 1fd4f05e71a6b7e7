package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"inkwell/internal/block"
	"inkwell/internal/mail"
)

// NoteExport is one note with its full live block set, as handed to the
// formatter.
type NoteExport struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Tags      []string      `json:"tags"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Blocks    []block.Block `json:"blocks"`
}

// DataSource supplies everything the export pipeline reads.
type DataSource interface {
	UserEmail(ctx context.Context, userID string) (string, error)
	CountNotes(ctx context.Context, userID string) (int64, error)
	CountBlocks(ctx context.Context, userID string) (int64, error)
	FetchNotes(ctx context.Context, userID string) ([]NoteExport, error)
}

// Exporter drives backup_export jobs. The Manager is bookkeeping only; all
// pipeline logic lives here.
type Exporter struct {
	Jobs   *Manager
	Source DataSource
	Mailer mail.Mailer
	Log    zerolog.Logger

	FetchTimeout time.Duration
	MaxNotes     int
	MaxBlocks    int
}

type exportEnvelope struct {
	UserID     string       `json:"user_id"`
	ExportedAt time.Time    `json:"exported_at"`
	Notes      []NoteExport `json:"notes"`
}

// Run drives one export job to a terminal state. Failures are encoded into
// the job record and never escape: the request that created the job has
// already been answered, so there is no caller to throw to.
func (e *Exporter) Run(ctx context.Context, jobID, userID string) {
	if err := e.run(ctx, jobID, userID); err != nil {
		e.fail(jobID, err)
	}
}

func (e *Exporter) run(ctx context.Context, jobID, userID string) error {
	processing := StatusProcessing
	if _, err := e.Jobs.UpdateJob(jobID, Patch{Status: &processing}); err != nil {
		return err
	}

	email, err := e.Source.UserEmail(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	e.progress(jobID, 10)

	notes, err := e.Source.CountNotes(ctx, userID)
	if err != nil {
		return fmt.Errorf("counting notes: %w", err)
	}
	blocks, err := e.Source.CountBlocks(ctx, userID)
	if err != nil {
		return fmt.Errorf("counting blocks: %w", err)
	}
	if notes > int64(e.MaxNotes) || blocks > int64(e.MaxBlocks) {
		return fmt.Errorf("%w: %d notes / %d blocks (limits %d / %d)",
			ErrTooMuchData, notes, blocks, e.MaxNotes, e.MaxBlocks)
	}
	e.progress(jobID, 20)

	fetchCtx, cancel := context.WithTimeout(ctx, e.FetchTimeout)
	defer cancel()
	data, err := e.Source.FetchNotes(fetchCtx, userID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("data fetch timed out after %s", e.FetchTimeout)
		}
		return fmt.Errorf("fetching notes: %w", err)
	}
	e.progress(jobID, 60)

	markdown := renderMarkdown(data)
	attachment, err := json.MarshalIndent(exportEnvelope{
		UserID:     userID,
		ExportedAt: time.Now(),
		Notes:      data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	e.progress(jobID, 80)

	msg := mail.Message{
		To:      email,
		Subject: "Your notes backup",
		Text:    markdown,
		HTML:    renderHTML(data),
		Attachments: []mail.Attachment{{
			Filename:    "backup.json",
			ContentType: "application/json",
			Data:        attachment,
		}},
	}
	if err := e.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending backup email: %w", err)
	}

	completed := StatusCompleted
	hundred := 100
	_, err = e.Jobs.UpdateJob(jobID, Patch{
		Status:   &completed,
		Progress: &hundred,
		Result: map[string]any{
			"notes":     notes,
			"blocks":    blocks,
			"recipient": email,
			"bytes":     len(attachment),
		},
	})
	if err == nil {
		e.Log.Info().Str("job", jobID).Str("user", userID).
			Int64("notes", notes).Int64("blocks", blocks).
			Msg("backup export delivered")
	}
	return err
}

func (e *Exporter) progress(jobID string, p int) {
	if _, err := e.Jobs.UpdateJob(jobID, Patch{Progress: &p}); err != nil {
		e.Log.Warn().Err(err).Str("job", jobID).Msg("progress update failed")
	}
}

func (e *Exporter) fail(jobID string, cause error) {
	msg := truncate(cause.Error(), 500)
	failed := StatusFailed
	if _, err := e.Jobs.UpdateJob(jobID, Patch{Status: &failed, Error: &msg}); err != nil {
		e.Log.Error().Err(err).Str("job", jobID).Msg("marking job failed failed")
	}
	e.Log.Error().Err(cause).Str("job", jobID).Msg("backup export failed")
}

// truncate caps s at max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
