package block

import (
	"encoding/json"
	"time"
)

// Block content types. The set is closed; anything else is rejected at
// creation and update time.
const (
	TypeText      = "text"
	TypeTodo      = "todo"
	TypeList      = "list"
	TypePage      = "page"
	TypeHeading   = "heading"
	TypeParagraph = "paragraph"
	TypeQuote     = "quote"
	TypeCode      = "code"
)

var validTypes = map[string]struct{}{
	TypeText:      {},
	TypeTodo:      {},
	TypeList:      {},
	TypePage:      {},
	TypeHeading:   {},
	TypeParagraph: {},
	TypeQuote:     {},
	TypeCode:      {},
}

func ValidType(t string) bool {
	_, ok := validTypes[t]
	return ok
}

// Block is the flat persisted form of one content node. Sibling order is
// defined by Position ascending within the same (note_id, parent_id);
// positions may be non-contiguous. Deleted rows stay in storage but are
// invisible to every read and update path.
type Block struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	NoteID   string  `gorm:"index;not null;type:uuid" json:"note_id"`
	UserID   string  `gorm:"not null;type:uuid" json:"user_id"`
	ParentID *string `gorm:"index;type:uuid" json:"parent_id"`

	Type       string          `gorm:"not null" json:"type"`
	Text       string          `gorm:"type:text;not null;default:''" json:"text"`
	Properties json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb" json:"properties"`
	Done       *bool           `json:"done,omitempty"`
	Position   int             `gorm:"not null" json:"position"`
	Deleted    bool            `gorm:"not null;default:false" json:"-"`

	// Level is computed on read (roots are 0), never persisted.
	Level int `gorm:"-" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}
