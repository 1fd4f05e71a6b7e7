package backup

import (
	"context"
	"errors"

	"inkwell/internal/auth"
	"inkwell/internal/block"
	"inkwell/internal/note"

	"gorm.io/gorm"
)

type gormSource struct {
	db *gorm.DB
}

// NewSource builds the production DataSource on top of the relational
// store.
func NewSource(db *gorm.DB) DataSource {
	return &gormSource{db: db}
}

func (s *gormSource) UserEmail(ctx context.Context, userID string) (string, error) {
	var u auth.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.New("user not found")
	}
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

func (s *gormSource) CountNotes(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&note.Note{}).
		Where("user_id = ? AND deleted = false", userID).
		Count(&n).Error
	return n, err
}

func (s *gormSource) CountBlocks(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&block.Block{}).
		Where("user_id = ? AND deleted = false", userID).
		Count(&n).Error
	return n, err
}

// FetchNotes loads the user's live notes and groups their live blocks per
// note in one pass, ordered by position so the formatter's stable sorts
// keep sibling order.
func (s *gormSource) FetchNotes(ctx context.Context, userID string) ([]NoteExport, error) {
	var notes []note.Note
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND deleted = false", userID).
		Order("created_at asc").
		Find(&notes).Error; err != nil {
		return nil, err
	}

	var blocks []block.Block
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND deleted = false", userID).
		Order("position asc").
		Find(&blocks).Error; err != nil {
		return nil, err
	}

	byNote := make(map[string][]block.Block, len(notes))
	for _, b := range blocks {
		byNote[b.NoteID] = append(byNote[b.NoteID], b)
	}

	out := make([]NoteExport, 0, len(notes))
	for _, n := range notes {
		out = append(out, NoteExport{
			ID:        n.ID,
			Title:     n.Title,
			Tags:      []string(n.Tags),
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
			Blocks:    byNote[n.ID],
		})
	}
	return out, nil
}
