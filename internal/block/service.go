package block

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service implements the block tree operations on top of a Store. Note
// existence and authorization are the caller's concern; an unknown note id
// simply yields an empty forest.
type Service struct {
	Store Store
}

// ListBlocks returns every live block of a note, level-annotated and
// ordered by (level, position).
func (s *Service) ListBlocks(ctx context.Context, noteID string) ([]Block, error) {
	rows, err := s.Store.ListByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return AnnotateLevels(rows), nil
}

func (s *Service) GetBlock(ctx context.Context, id string) (*Block, error) {
	return s.Store.Get(ctx, id)
}

type CreateInput struct {
	NoteID     string
	UserID     string
	ParentID   *string
	Type       string
	Text       string
	Properties json.RawMessage
	Done       *bool
	Position   *int
}

func (s *Service) CreateBlock(ctx context.Context, in CreateInput) (*Block, error) {
	if !ValidType(in.Type) {
		return nil, ErrInvalidType
	}
	if in.ParentID != nil {
		parent, err := s.Store.Get(ctx, *in.ParentID)
		if err != nil {
			if err == ErrNotFound {
				return nil, ErrInvalidParent
			}
			return nil, err
		}
		if parent.NoteID != in.NoteID {
			return nil, ErrInvalidParent
		}
	}

	pos := 0
	if in.Position != nil {
		pos = *in.Position
	} else {
		max, err := s.Store.MaxPosition(ctx, in.NoteID, in.ParentID)
		if err != nil {
			return nil, err
		}
		pos = max + 1
	}

	// done is only meaningful on todo blocks
	done := in.Done
	if in.Type != TypeTodo {
		done = nil
	}

	props := in.Properties
	if len(props) == 0 {
		props = json.RawMessage(`{}`)
	}

	now := time.Now()
	b := &Block{
		ID:         uuid.NewString(),
		NoteID:     in.NoteID,
		UserID:     in.UserID,
		ParentID:   in.ParentID,
		Type:       in.Type,
		Text:       in.Text,
		Properties: props,
		Done:       done,
		Position:   pos,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.Insert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

type UpdateInput struct {
	Type       *string
	Text       *string
	Properties json.RawMessage
	Done       *bool
	Position   *int
}

func (in UpdateInput) empty() bool {
	return in.Type == nil && in.Text == nil && in.Properties == nil &&
		in.Done == nil && in.Position == nil
}

func (s *Service) UpdateBlock(ctx context.Context, id string, in UpdateInput) (*Block, error) {
	if in.empty() {
		return nil, ErrEmptyUpdate
	}

	fields := map[string]any{}
	if in.Type != nil {
		if !ValidType(*in.Type) {
			return nil, ErrInvalidType
		}
		fields["type"] = *in.Type
	}
	if in.Text != nil {
		fields["text"] = *in.Text
	}
	if in.Properties != nil {
		fields["properties"] = in.Properties
	}
	if in.Done != nil {
		fields["done"] = *in.Done
	}
	if in.Position != nil {
		fields["position"] = *in.Position
	}
	fields["updated_at"] = time.Now()

	if err := s.Store.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, id)
}

// DeleteBlock soft-deletes a single block. Descendants stay visible; the
// delete does not cascade. A second call reports NotFound because the
// read-paths already exclude the row.
func (s *Service) DeleteBlock(ctx context.Context, id string) error {
	return s.Store.Update(ctx, id, map[string]any{
		"deleted":    true,
		"updated_at": time.Now(),
	})
}

// ReorderBlocks repositions blocks of one note in a single batch. Ids
// outside that note fail the whole batch; the caller's write right on
// noteID is all the authorization the operation needs.
func (s *Service) ReorderBlocks(ctx context.Context, noteID string, assignments []PositionAssignment) error {
	if len(assignments) == 0 {
		return ErrInvalidReorder
	}
	for _, a := range assignments {
		if strings.TrimSpace(a.ID) == "" {
			return ErrInvalidReorder
		}
	}
	return s.Store.Reorder(ctx, noteID, assignments)
}
