package block

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// PositionAssignment pins one block to a sibling position.
type PositionAssignment struct {
	ID       string
	Position int
}

// Store is the flat persistence surface the engine runs on. Soft-deleted
// rows are invisible to every method; deletion itself goes through Update.
type Store interface {
	ListByNote(ctx context.Context, noteID string) ([]Block, error)
	Get(ctx context.Context, id string) (*Block, error)
	MaxPosition(ctx context.Context, noteID string, parentID *string) (int, error)
	Insert(ctx context.Context, b *Block) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Reorder(ctx context.Context, noteID string, assignments []PositionAssignment) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) ListByNote(ctx context.Context, noteID string) ([]Block, error) {
	var rows []Block
	err := s.db.WithContext(ctx).
		Where("note_id = ? AND deleted = false", noteID).
		Order("position asc").
		Find(&rows).Error
	return rows, err
}

func (s *gormStore) Get(ctx context.Context, id string) (*Block, error) {
	var b Block
	err := s.db.WithContext(ctx).
		Where("id = ? AND deleted = false", id).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *gormStore) MaxPosition(ctx context.Context, noteID string, parentID *string) (int, error) {
	q := s.db.WithContext(ctx).Model(&Block{}).
		Where("note_id = ? AND deleted = false", noteID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}

	var max int
	err := q.Select("coalesce(max(position), 0)").Scan(&max).Error
	return max, err
}

func (s *gormStore) Insert(ctx context.Context, b *Block) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *gormStore) Update(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&Block{}).
		Where("id = ? AND deleted = false", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder applies the whole assignment batch inside one transaction so a
// concurrent reader never observes a half-reordered sibling set. Every id
// must belong to noteID; ids of other notes roll the batch back.
func (s *gormStore) Reorder(ctx context.Context, noteID string, assignments []PositionAssignment) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range assignments {
			res := tx.Model(&Block{}).
				Where("id = ? AND note_id = ? AND deleted = false", a.ID, noteID).
				Updates(map[string]any{"position": a.Position, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}
