package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/block"
	"inkwell/internal/note"

	"github.com/go-chi/chi/v5"
)

type BlockHandler struct {
	Blocks *block.Service
	Notes  *note.Service
}

type blockDTO struct {
	ID         string          `json:"id"`
	NoteID     string          `json:"note_id"`
	UserID     string          `json:"user_id"`
	ParentID   *string         `json:"parent_id"`
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Properties json.RawMessage `json:"properties"`
	Done       *bool           `json:"done,omitempty"`
	Position   int             `json:"position"`
	Level      int             `json:"level"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Children   []blockDTO      `json:"children"`
}

func toBlockDTO(b block.Block) blockDTO {
	return blockDTO{
		ID:         b.ID,
		NoteID:     b.NoteID,
		UserID:     b.UserID,
		ParentID:   b.ParentID,
		Type:       b.Type,
		Text:       b.Text,
		Properties: b.Properties,
		Done:       b.Done,
		Position:   b.Position,
		Level:      b.Level,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
		Children:   []blockDTO{},
	}
}

func toNodeDTO(n *block.Node) blockDTO {
	d := toBlockDTO(n.Block)
	for _, c := range n.Children {
		d.Children = append(d.Children, toNodeDTO(c))
	}
	return d
}

func blockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, block.ErrNotFound):
		http.Error(w, "block not found", http.StatusNotFound)
	case errors.Is(err, block.ErrInvalidType),
		errors.Is(err, block.ErrInvalidParent),
		errors.Is(err, block.ErrEmptyUpdate),
		errors.Is(err, block.ErrInvalidReorder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, note.ErrNotFound):
		http.Error(w, "note not found", http.StatusNotFound)
	case errors.Is(err, note.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

// access resolves the caller's right on a note, writing the error response
// itself when the note is missing or the right is insufficient.
func (h *BlockHandler) access(w http.ResponseWriter, r *http.Request, noteID string, write bool) bool {
	uid, _ := auth.UserIDFromContext(r.Context())
	_, access, err := h.Notes.AccessFor(r.Context(), uid, noteID)
	if err != nil {
		blockError(w, err)
		return false
	}
	if (write && !access.CanWrite()) || (!write && !access.CanRead()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")
	if !h.access(w, r, noteID, false) {
		return
	}

	rows, err := h.Blocks.ListBlocks(r.Context(), noteID)
	if err != nil {
		blockError(w, err)
		return
	}

	forest := block.BuildTree(rows)
	out := make([]blockDTO, 0, len(forest))
	for _, n := range forest {
		out = append(out, toNodeDTO(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}

type createBlockReq struct {
	ParentID   *string         `json:"parent_id"`
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Properties json.RawMessage `json:"properties"`
	Done       *bool           `json:"done"`
	Position   *int            `json:"position"`
}

func (h *BlockHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")
	if !h.access(w, r, noteID, true) {
		return
	}

	var req createBlockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	b, err := h.Blocks.CreateBlock(r.Context(), block.CreateInput{
		NoteID:     noteID,
		UserID:     uid,
		ParentID:   req.ParentID,
		Type:       req.Type,
		Text:       req.Text,
		Properties: req.Properties,
		Done:       req.Done,
		Position:   req.Position,
	})
	if err != nil {
		blockError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockDTO(*b))
}

type updateBlockReq struct {
	Type       *string         `json:"type"`
	Text       *string         `json:"text"`
	Properties json.RawMessage `json:"properties"`
	Done       *bool           `json:"done"`
	Position   *int            `json:"position"`
}

func (h *BlockHandler) Update(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "id")

	b, err := h.Blocks.GetBlock(r.Context(), blockID)
	if err != nil {
		blockError(w, err)
		return
	}
	if !h.access(w, r, b.NoteID, true) {
		return
	}

	var req updateBlockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	updated, err := h.Blocks.UpdateBlock(r.Context(), blockID, block.UpdateInput{
		Type:       req.Type,
		Text:       req.Text,
		Properties: req.Properties,
		Done:       req.Done,
		Position:   req.Position,
	})
	if err != nil {
		blockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlockDTO(*updated))
}

func (h *BlockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "id")

	b, err := h.Blocks.GetBlock(r.Context(), blockID)
	if err != nil {
		blockError(w, err)
		return
	}
	if !h.access(w, r, b.NoteID, true) {
		return
	}

	if err := h.Blocks.DeleteBlock(r.Context(), blockID); err != nil {
		blockError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "block deleted")
}

type reorderReq struct {
	Blocks []struct {
		ID       string `json:"id"`
		Position *int   `json:"position"`
	} `json:"blocks"`
}

func (h *BlockHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")
	if !h.access(w, r, noteID, true) {
		return
	}

	var req reorderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	assignments := make([]block.PositionAssignment, 0, len(req.Blocks))
	for _, entry := range req.Blocks {
		if entry.ID == "" || entry.Position == nil {
			http.Error(w, "invalid reorder payload", http.StatusBadRequest)
			return
		}
		assignments = append(assignments, block.PositionAssignment{
			ID:       entry.ID,
			Position: *entry.Position,
		})
	}

	if err := h.Blocks.ReorderBlocks(r.Context(), noteID, assignments); err != nil {
		blockError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "blocks reordered")
}
