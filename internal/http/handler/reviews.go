package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"caseflow/internal/auth"
	"caseflow/internal/review"
	"caseflow/internal/workspace"
)

type ReviewHandler struct {
	Svc *review.Service
}

type submitReviewReq struct {
	ReviewerID *uint64 `json:"reviewer_id"`
	Priority   string  `json:"priority"`
	DueDate    *string `json:"due_date"` // RFC3339 optional
}

// Submit creates the review request for a note (POST .../notes/{noteID}/review).
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	noteID, ok := parseID(w, r, "noteID")
	if !ok {
		return
	}

	var req submitReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	due, ok := parseDue(w, req.DueDate)
	if !ok {
		return
	}

	out, err := h.Svc.CreateReviewRequest(r.Context(), wsID, noteID, uid, role, review.CreateInput{
		ReviewerID: req.ReviewerID,
		Priority:   review.Priority(req.Priority),
		DueDate:    due,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type assignReq struct {
	ReviewerID uint64  `json:"reviewer_id"`
	Priority   *string `json:"priority"`
	DueDate    *string `json:"due_date"`
}

func (h *ReviewHandler) Assign(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	reqID, ok := parseID(w, r, "requestID")
	if !ok {
		return
	}

	var req assignReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	due, ok := parseDue(w, req.DueDate)
	if !ok {
		return
	}

	in := review.AssignInput{ReviewerID: req.ReviewerID, DueDate: due}
	if req.Priority != nil {
		p := review.Priority(*req.Priority)
		in.Priority = &p
	}

	out, err := h.Svc.AssignReviewer(r.Context(), wsID, reqID, uid, role, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type verdictReq struct {
	Verdict string  `json:"verdict"`
	Comment *string `json:"comment"`
}

func (h *ReviewHandler) Verdict(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	reqID, ok := parseID(w, r, "requestID")
	if !ok {
		return
	}

	var req verdictReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	err := h.Svc.SubmitVerdict(r.Context(), wsID, reqID, uid, role, review.Status(strings.TrimSpace(req.Verdict)), req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commentReq struct {
	Text string `json:"text"`
}

func (h *ReviewHandler) Comment(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	reqID, ok := parseID(w, r, "requestID")
	if !ok {
		return
	}

	var req commentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	if err := h.Svc.AddComment(r.Context(), wsID, reqID, uid, req.Text); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *ReviewHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	wsID, _ := workspace.IDFromContext(r.Context())
	role, _ := workspace.RoleFromContext(r.Context())
	reqID, ok := parseID(w, r, "requestID")
	if !ok {
		return
	}

	if err := h.Svc.Reopen(r.Context(), wsID, reqID, uid, role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type actionDTO struct {
	ID        uint64          `json:"id"`
	RequestID uint64          `json:"request_id"`
	ActorID   uint64          `json:"actor_id"`
	Action    string          `json:"action"`
	Note      *string         `json:"note"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *ReviewHandler) Actions(w http.ResponseWriter, r *http.Request) {
	wsID, _ := workspace.IDFromContext(r.Context())
	reqID, ok := parseID(w, r, "requestID")
	if !ok {
		return
	}

	var after uint64
	if s := strings.TrimSpace(r.URL.Query().Get("after")); s != "" {
		if v, err := strconv.ParseUint(s, 10, 64); err == nil {
			after = v
		}
	}

	rows, err := h.Svc.ListActions(r.Context(), wsID, reqID, after)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]actionDTO, 0, len(rows))
	for _, a := range rows {
		out = append(out, actionDTO{
			ID:        a.ID,
			RequestID: a.RequestID,
			ActorID:   a.ActorID,
			Action:    string(a.Kind),
			Note:      a.Note,
			Metadata:  a.Metadata,
			CreatedAt: a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	wsID, _ := workspace.IDFromContext(r.Context())

	var f review.ListFilter
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		st := review.Status(s)
		f.Status = &st
	}
	if s := strings.TrimSpace(r.URL.Query().Get("reviewer_id")); s != "" {
		if id, err := strconv.ParseUint(s, 10, 64); err == nil {
			f.ReviewerID = &id
		}
	}

	out, err := h.Svc.List(r.Context(), wsID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func parseDue(w http.ResponseWriter, s *string) (*time.Time, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		http.Error(w, "invalid due_date (RFC3339)", http.StatusBadRequest)
		return nil, false
	}
	return &t, true
}
