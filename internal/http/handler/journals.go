package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"caseflow/internal/auth"
	"caseflow/internal/journal"
	"caseflow/internal/workspace"
)

type JournalHandler struct {
	Svc *journal.Service
}

type generateReq struct {
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	Title           string  `json:"title"`
	EditorialNote   *string `json:"editorial_note"`
	RecommendedOnly bool    `json:"recommended_only"`
}

func (h *JournalHandler) Generate(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())

	var req generateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	j, err := h.Svc.Generate(r.Context(), wsID, uid, role, journal.GenerateInput{
		Year:            req.Year,
		Month:           req.Month,
		Title:           req.Title,
		EditorialNote:   req.EditorialNote,
		RecommendedOnly: req.RecommendedOnly,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	wsID, _ := workspace.IDFromContext(r.Context())
	jid, ok := parseID(w, r, "journalID")
	if !ok {
		return
	}

	j, entries, err := h.Svc.Get(r.Context(), wsID, jid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journal": j, "entries": entries})
}

func (h *JournalHandler) Publish(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	jid, ok := parseID(w, r, "journalID")
	if !ok {
		return
	}

	j, err := h.Svc.Publish(r.Context(), wsID, jid, uid, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *JournalHandler) Archive(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	jid, ok := parseID(w, r, "journalID")
	if !ok {
		return
	}

	if err := h.Svc.Archive(r.Context(), wsID, jid, uid, role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	wsID, _ := workspace.IDFromContext(r.Context())

	var f journal.ListFilter
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		st := journal.Status(s)
		f.Status = &st
	}
	if s := strings.TrimSpace(r.URL.Query().Get("year")); s != "" {
		if y, err := strconv.Atoi(s); err == nil {
			f.Year = &y
		}
	}
	if s := strings.TrimSpace(r.URL.Query().Get("page")); s != "" {
		if p, err := strconv.Atoi(s); err == nil {
			f.Page = p
		}
	}
	if s := strings.TrimSpace(r.URL.Query().Get("page_size")); s != "" {
		if p, err := strconv.Atoi(s); err == nil {
			f.PageSize = p
		}
	}

	rows, total, err := h.Svc.List(r.Context(), wsID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journals": rows, "total": total})
}
