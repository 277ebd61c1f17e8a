package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"caseflow/internal/auth"
	"caseflow/internal/note"
	"caseflow/internal/review"
	"caseflow/internal/workspace"

	"github.com/go-chi/chi/v5"
)

type NoteHandler struct {
	Notes   *note.Service
	Reviews *review.Service
}

type noteDTO struct {
	ID                  uint64     `json:"id"`
	WorkspaceID         uint64     `json:"workspace_id"`
	AuthorID            uint64     `json:"author_id"`
	Title               string     `json:"title"`
	Body                string     `json:"body"`
	Topic               *string    `json:"topic"`
	Tags                []string   `json:"tags"`
	RecommendForJournal bool       `json:"recommend_for_journal"`
	Status              string     `json:"status"`
	PublishedAt         *time.Time `json:"published_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toNoteDTO(n note.Note) noteDTO {
	return noteDTO{
		ID:                  n.ID,
		WorkspaceID:         n.WorkspaceID,
		AuthorID:            n.AuthorID,
		Title:               n.Title,
		Body:                n.Body,
		Topic:               n.Topic,
		Tags:                []string(n.Tags),
		RecommendForJournal: n.RecommendForJournal,
		Status:              string(n.Status),
		PublishedAt:         n.PublishedAt,
		CreatedAt:           n.CreatedAt,
		UpdatedAt:           n.UpdatedAt,
	}
}

type noteReq struct {
	Title               string   `json:"title"`
	Body                string   `json:"body"`
	Topic               *string  `json:"topic"`
	Tags                []string `json:"tags"`
	RecommendForJournal *bool    `json:"recommend_for_journal"`
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())

	var req noteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	in := note.CreateInput{
		Title: req.Title,
		Body:  req.Body,
		Topic: req.Topic,
		Tags:  req.Tags,
	}
	if req.RecommendForJournal != nil {
		in.RecommendForJournal = *req.RecommendForJournal
	}

	n, err := h.Notes.Create(r.Context(), wsID, uid, role, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteDTO(n))
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	wsID, _ := workspace.IDFromContext(r.Context())

	var f note.ListFilter
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		st := note.Status(s)
		f.Status = &st
	}
	if s := strings.TrimSpace(r.URL.Query().Get("author_id")); s != "" {
		if id, err := strconv.ParseUint(s, 10, 64); err == nil {
			f.AuthorID = &id
		}
	}

	rows, err := h.Notes.List(r.Context(), wsID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]noteDTO, 0, len(rows))
	for _, n := range rows {
		out = append(out, toNoteDTO(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	wsID, _ := workspace.IDFromContext(r.Context())
	noteID, ok := parseID(w, r, "noteID")
	if !ok {
		return
	}

	n, err := h.Notes.Get(r.Context(), wsID, noteID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

// Update edits a draft note. When the draft is the result of a
// changes-requested verdict, a revision_submitted entry lands on the
// request's audit trail.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	noteID, ok := parseID(w, r, "noteID")
	if !ok {
		return
	}

	var req noteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	n, err := h.Notes.Update(r.Context(), wsID, noteID, uid, role, note.UpdateInput{
		Title:               req.Title,
		Body:                req.Body,
		Topic:               req.Topic,
		Tags:                req.Tags,
		RecommendForJournal: req.RecommendForJournal,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Reviews.RecordRevision(r.Context(), wsID, noteID, uid); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *NoteHandler) Publish(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	noteID, ok := parseID(w, r, "noteID")
	if !ok {
		return
	}

	n, err := h.Notes.Publish(r.Context(), wsID, noteID, uid, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *NoteHandler) Archive(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	noteID, ok := parseID(w, r, "noteID")
	if !ok {
		return
	}

	if err := h.Notes.Archive(r.Context(), wsID, noteID, uid, role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
