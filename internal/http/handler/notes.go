package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/note"

	"github.com/go-chi/chi/v5"
)

type NoteHandler struct {
	Svc *note.Service
}

type noteDTO struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags"`
	Permission string    `json:"permission,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toNoteDTO(n *note.Note, access note.Access) noteDTO {
	d := noteDTO{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Tags:      []string(n.Tags),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if access != note.AccessNone {
		d.Permission = access.String()
	}
	return d
}

func noteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, note.ErrNotFound):
		http.Error(w, "note not found", http.StatusNotFound)
	case errors.Is(err, note.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, note.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, note.ErrInvalidPermission):
		http.Error(w, "invalid permission", http.StatusBadRequest)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

type createNoteReq struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createNoteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	n, err := h.Svc.CreateNote(r.Context(), uid, note.CreateNoteInput{
		Title: req.Title,
		Tags:  req.Tags,
	})
	if err != nil {
		noteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteDTO(n, note.AccessOwner))
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	rows, err := h.Svc.ListNotes(r.Context(), uid, note.ListFilter{
		Tag:   r.URL.Query().Get("tag"),
		Query: r.URL.Query().Get("q"),
	})
	if err != nil {
		noteError(w, err)
		return
	}

	out := make([]noteDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toNoteDTO(&rows[i], note.AccessNone))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	n, access, err := h.Svc.AccessFor(r.Context(), uid, noteID)
	if err != nil {
		noteError(w, err)
		return
	}
	if !access.CanRead() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n, access))
}

type updateNoteReq struct {
	Title *string  `json:"title"`
	Tags  []string `json:"tags"`
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	var req updateNoteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	n, err := h.Svc.UpdateNote(r.Context(), uid, noteID, note.UpdateNoteInput{
		Title: req.Title,
		Tags:  req.Tags,
	})
	if err != nil {
		noteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n, note.AccessNone))
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	if err := h.Svc.DeleteNote(r.Context(), uid, noteID); err != nil {
		noteError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "note deleted")
}

type shareReq struct {
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

func (h *NoteHandler) Share(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	var req shareReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	c, err := h.Svc.Share(r.Context(), uid, noteID, req.Email, req.Permission)
	if err != nil {
		noteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"note_id":    c.NoteID,
		"user_id":    c.UserID,
		"permission": c.Permission,
	})
}

func (h *NoteHandler) Collaborators(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	out, err := h.Svc.Collaborators(r.Context(), uid, noteID)
	if err != nil {
		noteError(w, err)
		return
	}
	if out == nil {
		out = []note.CollaboratorInfo{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *NoteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")
	collaboratorID := chi.URLParam(r, "userID")

	if err := h.Svc.Revoke(r.Context(), uid, noteID, collaboratorID); err != nil {
		noteError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "collaborator removed")
}
