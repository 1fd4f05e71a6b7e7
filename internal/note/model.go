package note

import (
	"time"

	"github.com/lib/pq"
)

// Note is the container blocks hang off. Content lives entirely in the
// blocks table; the note row carries title, tags and ownership.
type Note struct {
	ID     string `gorm:"primaryKey;type:uuid"`
	UserID string `gorm:"index;not null;type:uuid"`

	Title string         `gorm:"type:text;not null;default:''"`
	Tags  pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	Deleted bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"index;not null;default:now()"`
}

const (
	PermissionRead  = "read"
	PermissionWrite = "write"
)

// Collaborator grants another user access to a note.
type Collaborator struct {
	NoteID     string    `gorm:"primaryKey;type:uuid"`
	UserID     string    `gorm:"primaryKey;type:uuid"`
	Permission string    `gorm:"not null;default:'read'"`
	CreatedAt  time.Time `gorm:"not null;default:now()"`
}

// Access is the caller's effective right on a note.
type Access int

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
	AccessOwner
)

func (a Access) CanRead() bool  { return a >= AccessRead }
func (a Access) CanWrite() bool { return a >= AccessWrite }

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessOwner:
		return "owner"
	default:
		return "none"
	}
}
