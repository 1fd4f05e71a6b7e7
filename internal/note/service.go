package note

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell/internal/auth"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB *gorm.DB
}

type CreateNoteInput struct {
	Title string
	Tags  []string
}

func (s *Service) CreateNote(ctx context.Context, userID string, in CreateNoteInput) (*Note, error) {
	now := time.Now()
	n := Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(in.Title),
		Tags:      pq.StringArray(NormalizeTags(in.Tags)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.Tags == nil {
		n.Tags = pq.StringArray{}
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

type ListFilter struct {
	Tag   string
	Query string
}

// ListNotes returns the caller's own notes plus notes shared with them,
// newest-updated first.
func (s *Service) ListNotes(ctx context.Context, userID string, f ListFilter) ([]Note, error) {
	shared := s.DB.WithContext(ctx).Model(&Collaborator{}).Select("note_id").Where("user_id = ?", userID)

	q := s.DB.WithContext(ctx).Model(&Note{}).
		Where("deleted = false").
		Where("user_id = ? OR id IN (?)", userID, shared)

	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		q = q.Where("? = any(tags)", tag)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		q = q.Where("title ILIKE ?", "%"+text+"%")
	}

	var rows []Note
	err := q.Order("updated_at desc").Find(&rows).Error
	return rows, err
}

// AccessFor reports the caller's effective right on a note. Deleted and
// unknown notes are indistinguishable from the caller's point of view.
func (s *Service) AccessFor(ctx context.Context, userID, noteID string) (*Note, Access, error) {
	var n Note
	err := s.DB.WithContext(ctx).
		Where("id = ? AND deleted = false", noteID).
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, AccessNone, ErrNotFound
	}
	if err != nil {
		return nil, AccessNone, err
	}

	if n.UserID == userID {
		return &n, AccessOwner, nil
	}

	var c Collaborator
	err = s.DB.WithContext(ctx).
		Where("note_id = ? AND user_id = ?", noteID, userID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &n, AccessNone, nil
	}
	if err != nil {
		return nil, AccessNone, err
	}

	if c.Permission == PermissionWrite {
		return &n, AccessWrite, nil
	}
	return &n, AccessRead, nil
}

type UpdateNoteInput struct {
	Title *string
	Tags  []string
}

func (s *Service) UpdateNote(ctx context.Context, userID, noteID string, in UpdateNoteInput) (*Note, error) {
	n, access, err := s.AccessFor(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if !access.CanWrite() {
		return nil, ErrForbidden
	}

	fields := map[string]any{"updated_at": time.Now()}
	if in.Title != nil {
		fields["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Tags != nil {
		fields["tags"] = pq.StringArray(NormalizeTags(in.Tags))
	}

	if err := s.DB.WithContext(ctx).Model(&Note{}).
		Where("id = ?", noteID).
		Updates(fields).Error; err != nil {
		return nil, err
	}
	return s.reload(ctx, n.ID)
}

// DeleteNote soft-deletes a note. Owner only; blocks stay in storage and
// become unreachable through the note listing.
func (s *Service) DeleteNote(ctx context.Context, userID, noteID string) error {
	_, access, err := s.AccessFor(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if access != AccessOwner {
		return ErrForbidden
	}
	return s.DB.WithContext(ctx).Model(&Note{}).
		Where("id = ?", noteID).
		Updates(map[string]any{"deleted": true, "updated_at": time.Now()}).Error
}

// Share grants a user, addressed by email, read or write access. Owner
// only. Re-sharing with a different permission overwrites the old grant.
func (s *Service) Share(ctx context.Context, ownerID, noteID, email, permission string) (*Collaborator, error) {
	if permission != PermissionRead && permission != PermissionWrite {
		return nil, ErrInvalidPermission
	}

	_, access, err := s.AccessFor(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	if access != AccessOwner {
		return nil, ErrForbidden
	}

	var u auth.User
	err = s.DB.WithContext(ctx).
		Where("email = ?", strings.TrimSpace(strings.ToLower(email))).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.ID == ownerID {
		return nil, ErrInvalidPermission
	}

	c := Collaborator{
		NoteID:     noteID,
		UserID:     u.ID,
		Permission: permission,
		CreatedAt:  time.Now(),
	}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "note_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission"}),
	}).Create(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type CollaboratorInfo struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Permission string `json:"permission"`
}

func (s *Service) Collaborators(ctx context.Context, userID, noteID string) ([]CollaboratorInfo, error) {
	_, access, err := s.AccessFor(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead() {
		return nil, ErrForbidden
	}

	var out []CollaboratorInfo
	err = s.DB.WithContext(ctx).Raw(`
		select c.user_id, u.email, u.name, c.permission
		from collaborators c
		join users u on u.id = c.user_id
		where c.note_id = ?
		order by c.created_at asc
	`, noteID).Scan(&out).Error
	return out, err
}

func (s *Service) Revoke(ctx context.Context, ownerID, noteID, collaboratorID string) error {
	_, access, err := s.AccessFor(ctx, ownerID, noteID)
	if err != nil {
		return err
	}
	if access != AccessOwner {
		return ErrForbidden
	}

	res := s.DB.WithContext(ctx).
		Where("note_id = ? AND user_id = ?", noteID, collaboratorID).
		Delete(&Collaborator{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) reload(ctx context.Context, noteID string) (*Note, error) {
	var n Note
	if err := s.DB.WithContext(ctx).Where("id = ?", noteID).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}
