package backup_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"inkwell/internal/backup"
	"inkwell/internal/block"
	"inkwell/internal/mail"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	email  string
	notes  int64
	blocks int64
	data   []backup.NoteExport

	fetchErr   error
	blockFetch bool
}

func (s *fakeSource) UserEmail(ctx context.Context, userID string) (string, error) {
	return s.email, nil
}

func (s *fakeSource) CountNotes(ctx context.Context, userID string) (int64, error) {
	return s.notes, nil
}

func (s *fakeSource) CountBlocks(ctx context.Context, userID string) (int64, error) {
	return s.blocks, nil
}

func (s *fakeSource) FetchNotes(ctx context.Context, userID string) ([]backup.NoteExport, error) {
	if s.blockFetch {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.data, nil
}

type fakeMailer struct {
	sent    []mail.Message
	sendErr error
}

func (m *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newExporter(t *testing.T, src *fakeSource, mailer *fakeMailer) (*backup.Exporter, *backup.Manager) {
	t.Helper()
	jobs, err := backup.NewManager(t.TempDir(), 24*time.Hour, zerolog.Nop())
	require.NoError(t, err)
	return &backup.Exporter{
		Jobs:         jobs,
		Source:       src,
		Mailer:       mailer,
		Log:          zerolog.Nop(),
		FetchTimeout: time.Second,
		MaxNotes:     10000,
		MaxBlocks:    100000,
	}, jobs
}

func startJob(t *testing.T, jobs *backup.Manager, id string) {
	t.Helper()
	_, err := jobs.CreateJob(id, backup.TypeExport, "u1", nil)
	require.NoError(t, err)
}

func TestExporter_Success(t *testing.T) {
	done := true
	src := &fakeSource{
		email:  "alice@example.com",
		notes:  1,
		blocks: 2,
		data: []backup.NoteExport{{
			ID:    "n1",
			Title: "Groceries",
			Tags:  []string{"home"},
			Blocks: []block.Block{
				{ID: "b1", NoteID: "n1", Type: block.TypeTodo, Text: "milk", Done: &done, Position: 1},
				{ID: "b2", NoteID: "n1", Type: block.TypeText, Text: "from the market", Position: 2},
			},
		}},
	}
	mailer := &fakeMailer{}
	e, jobs := newExporter(t, src, mailer)
	startJob(t, jobs, "j1")

	e.Run(context.Background(), "j1", "u1")

	j := jobs.GetJob("j1")
	require.NotNil(t, j)
	assert.Equal(t, backup.StatusCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.Empty(t, j.Error)
	require.NotNil(t, j.StartedAt)
	require.NotNil(t, j.CompletedAt)
	assert.Equal(t, int64(1), j.Result["notes"])
	assert.Equal(t, int64(2), j.Result["blocks"])
	assert.Equal(t, "alice@example.com", j.Result["recipient"])

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Your notes backup", msg.Subject)
	assert.Contains(t, msg.Text, "## Groceries")
	assert.Contains(t, msg.Text, "- [x] milk")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "backup.json", msg.Attachments[0].Filename)
	var envelope struct {
		UserID string              `json:"user_id"`
		Notes  []backup.NoteExport `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(msg.Attachments[0].Data, &envelope))
	assert.Equal(t, "u1", envelope.UserID)
	require.Len(t, envelope.Notes, 1)
	assert.Len(t, envelope.Notes[0].Blocks, 2)
}

func TestExporter_TooMuchData(t *testing.T) {
	src := &fakeSource{email: "a@b.c", notes: 10001, blocks: 5}
	mailer := &fakeMailer{}
	e, jobs := newExporter(t, src, mailer)
	startJob(t, jobs, "j1")

	e.Run(context.Background(), "j1", "u1")

	j := jobs.GetJob("j1")
	require.NotNil(t, j)
	assert.Equal(t, backup.StatusFailed, j.Status)
	assert.Contains(t, j.Error, "too much data")
	assert.Empty(t, mailer.sent, "nothing is fetched or sent past the cap")
}

func TestExporter_FetchTimeout(t *testing.T) {
	src := &fakeSource{email: "a@b.c", notes: 1, blocks: 1, blockFetch: true}
	mailer := &fakeMailer{}
	e, jobs := newExporter(t, src, mailer)
	e.FetchTimeout = 20 * time.Millisecond
	startJob(t, jobs, "j1")

	e.Run(context.Background(), "j1", "u1")

	j := jobs.GetJob("j1")
	require.NotNil(t, j)
	assert.Equal(t, backup.StatusFailed, j.Status)
	assert.Contains(t, j.Error, "timed out")
	assert.Empty(t, mailer.sent)
}

func TestExporter_FetchError(t *testing.T) {
	src := &fakeSource{email: "a@b.c", notes: 1, blocks: 1, fetchErr: errors.New("connection reset")}
	mailer := &fakeMailer{}
	e, jobs := newExporter(t, src, mailer)
	startJob(t, jobs, "j1")

	e.Run(context.Background(), "j1", "u1")

	j := jobs.GetJob("j1")
	require.NotNil(t, j)
	assert.Equal(t, backup.StatusFailed, j.Status)
	assert.Contains(t, j.Error, "fetching notes")
	assert.Contains(t, j.Error, "connection reset")
}

func TestExporter_ErrorTruncatedOnRuneBoundary(t *testing.T) {
	src := &fakeSource{
		email: "a@b.c", notes: 1, blocks: 1,
		fetchErr: errors.New(strings.Repeat("筆", 400)),
	}
	mailer := &fakeMailer{}
	e, jobs := newExporter(t, src, mailer)
	startJob(t, jobs, "j1")

	e.Run(context.Background(), "j1", "u1")

	j := jobs.GetJob("j1")
	require.NotNil(t, j)
	assert.Equal(t, backup.StatusFailed, j.Status)
	assert.LessOrEqual(t, len(j.Error), 500)
	assert.True(t, utf8.ValidString(j.Error), "truncation must not split a rune")
}

func TestExporter_MailFailure(t *testing.T) {
	src := &fakeSource{email: "a@b.c", notes: 0, blocks: 0}
	mailer := &fakeMailer{sendErr: errors.New("smtp: 550 rejected")}
	e, jobs := newExporter(t, src, mailer)
	startJob(t, jobs, "j1")

	e.Run(context.Background(), "j1", "u1")

	j := jobs.GetJob("j1")
	require.NotNil(t, j)
	assert.Equal(t, backup.StatusFailed, j.Status)
	assert.Contains(t, j.Error, "sending backup email")
	require.NotNil(t, j.CompletedAt, "failed jobs are terminal")
}
