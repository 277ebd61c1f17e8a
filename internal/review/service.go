package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"caseflow/internal/apperr"
	"caseflow/internal/jobs"
	"caseflow/internal/note"
	"caseflow/internal/notify"
	"caseflow/internal/workspace"

	"gorm.io/gorm"
)

// Service is the review workflow engine. Every status change runs in one
// transaction together with its audit row and the note-side mutation it
// implies, and re-checks the expected pre-state with a conditional
// UPDATE so concurrent writers fail with a conflict instead of
// double-transitioning.
type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	ReviewerID *uint64
	Priority   Priority
	DueDate    *time.Time
}

// CreateReviewRequest submits a draft note for review: one open request
// per note, note moves to under_review, a submitted audit entry is
// written. If a reviewer is named up front the request starts directly
// in in_review with a companion assigned entry, so the audit fold stays
// in step with the stored status.
func (s *Service) CreateReviewRequest(ctx context.Context, wsID, noteID, requesterID uint64, role workspace.Role, in CreateInput) (Request, error) {
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	if _, err := ParsePriority(string(in.Priority)); err != nil {
		return Request{}, err
	}

	var req Request
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := getNote(tx, wsID, noteID)
		if err != nil {
			return err
		}
		if n.AuthorID != requesterID && !role.CanAssign() {
			return fmt.Errorf("%w: only the author or an editor may submit for review", apperr.ErrForbidden)
		}
		if n.Status != note.StatusDraft {
			return fmt.Errorf("%w: cannot submit a %s note for review", apperr.ErrInvalidTransition, n.Status)
		}

		// Exactly one open request per note. The store cannot express
		// this constraint, so it is checked here inside the transaction.
		var open int64
		if err := tx.Model(&Request{}).
			Where("note_id = ? AND workspace_id = ? AND status IN ?", noteID, wsID, []Status{StatusPending, StatusInReview}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: note already has an open review request", apperr.ErrConflict)
		}

		req = Request{
			NoteID:      noteID,
			WorkspaceID: wsID,
			RequesterID: requesterID,
			ReviewerID:  in.ReviewerID,
			Priority:    in.Priority,
			DueDate:     in.DueDate,
			Status:      StatusPending,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if in.ReviewerID != nil {
			req.Status = StatusInReview
		}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}

		if err := appendAction(tx, &req, requesterID, ActionSubmitted, nil, nil); err != nil {
			return err
		}
		if in.ReviewerID != nil {
			meta := map[string]any{"reviewer_id": *in.ReviewerID}
			if err := appendAction(tx, &req, requesterID, ActionAssigned, nil, meta); err != nil {
				return err
			}
			if err := jobs.EnqueueNotify(tx, *in.ReviewerID, notify.KindReviewAssigned, map[string]any{
				"request_id": req.ID, "note_id": noteID,
			}); err != nil {
				return err
			}
		}

		return transitionNote(tx, wsID, noteID, note.StatusDraft, note.StatusUnderReview, nil)
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

type AssignInput struct {
	ReviewerID uint64
	Priority   *Priority
	DueDate    *time.Time
}

// AssignReviewer puts an open request in front of a reviewer. Requests
// that are terminal, or live in another workspace, report not-found.
func (s *Service) AssignReviewer(ctx context.Context, wsID, requestID, actorID uint64, role workspace.Role, in AssignInput) (Request, error) {
	if !role.CanAssign() {
		return Request{}, fmt.Errorf("%w: assigning requires editor or admin", apperr.ErrForbidden)
	}
	if in.Priority != nil {
		if _, err := ParsePriority(string(*in.Priority)); err != nil {
			return Request{}, err
		}
	}

	var req Request
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = getRequest(tx, wsID, requestID)
		if err != nil {
			return err
		}
		if !req.Status.Open() {
			return fmt.Errorf("%w: review request", apperr.ErrNotFound)
		}

		updates := map[string]any{
			"reviewer_id": in.ReviewerID,
			"status":      StatusInReview,
			"updated_at":  time.Now(),
		}
		if in.Priority != nil {
			updates["priority"] = *in.Priority
			req.Priority = *in.Priority
		}
		if in.DueDate != nil {
			updates["due_date"] = *in.DueDate
			req.DueDate = in.DueDate
		}

		res := tx.Model(&Request{}).
			Where("id = ? AND workspace_id = ? AND status IN ?", requestID, wsID, []Status{StatusPending, StatusInReview}).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request status changed concurrently", apperr.ErrConflict)
		}
		req.ReviewerID = &in.ReviewerID
		req.Status = StatusInReview

		meta := map[string]any{"reviewer_id": in.ReviewerID}
		if err := appendAction(tx, &req, actorID, ActionAssigned, nil, meta); err != nil {
			return err
		}

		return jobs.EnqueueNotify(tx, in.ReviewerID, notify.KindReviewAssigned, map[string]any{
			"request_id": req.ID, "note_id": req.NoteID,
		})
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// SubmitVerdict delivers the reviewer's terminal decision and mutates the
// note in the same transaction: approved leaves the note approved
// (publication stays a separate explicit act), rejection and
// changes-requested send it back to draft.
func (s *Service) SubmitVerdict(ctx context.Context, wsID, requestID, actorID uint64, role workspace.Role, verdict Status, comment *string) error {
	if !verdict.Terminal() {
		return fmt.Errorf("%w: verdict must be approved, rejected or changes_requested", apperr.ErrValidation)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := getRequest(tx, wsID, requestID)
		if err != nil {
			return err
		}

		assigned := req.ReviewerID != nil && *req.ReviewerID == actorID
		if !assigned && !role.IsAdmin() {
			return fmt.Errorf("%w: only the assigned reviewer may submit a verdict", apperr.ErrForbidden)
		}

		switch {
		case req.Status.Terminal():
			// a concurrent verdict got here first
			return fmt.Errorf("%w: request already has a verdict", apperr.ErrConflict)
		case req.Status == StatusPending:
			return fmt.Errorf("%w: request has no assigned reviewer yet", apperr.ErrInvalidTransition)
		}

		res := tx.Model(&Request{}).
			Where("id = ? AND workspace_id = ? AND status = ?", requestID, wsID, StatusInReview).
			Updates(map[string]any{"status": verdict, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request status changed concurrently", apperr.ErrConflict)
		}

		if err := appendAction(tx, &req, actorID, verdictAction(verdict), comment, nil); err != nil {
			return err
		}

		target := note.StatusDraft
		if verdict == StatusApproved {
			target = note.StatusApproved
		}
		if err := transitionNote(tx, wsID, req.NoteID, note.StatusUnderReview, target, nil); err != nil {
			return err
		}

		return jobs.EnqueueNotify(tx, req.RequesterID, notify.KindVerdictDelivered, map[string]any{
			"request_id": req.ID, "note_id": req.NoteID, "verdict": verdict,
		})
	})
}

// Reopen cycles a rejected or changes-requested request back to pending,
// clearing the reviewer and putting the note under review again.
// Approved is final here: publication is forward-only and lives on the
// note side.
func (s *Service) Reopen(ctx context.Context, wsID, requestID, actorID uint64, role workspace.Role) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := getRequest(tx, wsID, requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != actorID && !role.CanAssign() {
			return fmt.Errorf("%w: only the requester or an editor may reopen", apperr.ErrForbidden)
		}
		if !req.Status.Reopenable() {
			return fmt.Errorf("%w: cannot reopen a %s request", apperr.ErrInvalidTransition, req.Status)
		}

		prevReviewer := req.ReviewerID

		res := tx.Model(&Request{}).
			Where("id = ? AND workspace_id = ? AND status = ?", requestID, wsID, req.Status).
			Updates(map[string]any{"status": StatusPending, "reviewer_id": nil, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request status changed concurrently", apperr.ErrConflict)
		}

		if err := appendAction(tx, &req, actorID, ActionReopened, nil, nil); err != nil {
			return err
		}

		if err := transitionNote(tx, wsID, req.NoteID, note.StatusDraft, note.StatusUnderReview, nil); err != nil {
			return err
		}

		if prevReviewer != nil {
			return jobs.EnqueueNotify(tx, *prevReviewer, notify.KindReviewReopened, map[string]any{
				"request_id": req.ID, "note_id": req.NoteID,
			})
		}
		return nil
	})
}

// AddComment appends a comment_added audit entry. Legal in any request
// state and never touches status.
func (s *Service) AddComment(ctx context.Context, wsID, requestID, actorID uint64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: comment text required", apperr.ErrValidation)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := getRequest(tx, wsID, requestID)
		if err != nil {
			return err
		}
		return appendAction(tx, &req, actorID, ActionCommentAdded, &text, nil)
	})
}

// RecordRevision marks that the author revised the note after a
// changes-requested verdict. No-op when no such request exists.
func (s *Service) RecordRevision(ctx context.Context, wsID, noteID, actorID uint64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req Request
		err := tx.Where("note_id = ? AND workspace_id = ? AND status = ?", noteID, wsID, StatusChangesRequested).
			Order("id desc").First(&req).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return appendAction(tx, &req, actorID, ActionRevisionSubmitted, nil, nil)
	})
}

// ListActions returns the audit trail in creation order. afterID makes
// the read restartable: pass the last seen id to resume.
func (s *Service) ListActions(ctx context.Context, wsID, requestID, afterID uint64) ([]Action, error) {
	if _, err := getRequest(s.DB.WithContext(ctx), wsID, requestID); err != nil {
		return nil, err
	}

	var out []Action
	q := s.DB.WithContext(ctx).
		Where("request_id = ? AND workspace_id = ?", requestID, wsID)
	if afterID > 0 {
		q = q.Where("id > ?", afterID)
	}
	err := q.Order("id asc").Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, wsID, requestID uint64) (Request, error) {
	return getRequest(s.DB.WithContext(ctx), wsID, requestID)
}

type ListFilter struct {
	Status     *Status
	ReviewerID *uint64
	Limit      int
}

func (s *Service) List(ctx context.Context, wsID uint64, f ListFilter) ([]Request, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.DB.WithContext(ctx).Where("workspace_id = ?", wsID)
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.ReviewerID != nil {
		q = q.Where("reviewer_id = ?", *f.ReviewerID)
	}

	var out []Request
	err := q.Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}

func verdictAction(verdict Status) ActionKind {
	switch verdict {
	case StatusApproved:
		return ActionApproved
	case StatusRejected:
		return ActionRejected
	default:
		return ActionChangesRequested
	}
}

func appendAction(tx *gorm.DB, req *Request, actorID uint64, kind ActionKind, text *string, meta map[string]any) error {
	a := Action{
		RequestID:   req.ID,
		WorkspaceID: req.WorkspaceID,
		ActorID:     actorID,
		Kind:        kind,
		Note:        text,
		CreatedAt:   time.Now(),
	}
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		a.Metadata = json.RawMessage(b)
	}
	return tx.Create(&a).Error
}

// transitionNote flips the note status iff it still holds the expected
// pre-state; zero rows affected means another actor got there first.
func transitionNote(tx *gorm.DB, wsID, noteID uint64, from, to note.Status, extra map[string]any) error {
	updates := map[string]any{"status": to, "updated_at": time.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&note.Note{}).
		Where("id = ? AND workspace_id = ? AND status = ?", noteID, wsID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: note status changed concurrently", apperr.ErrConflict)
	}
	return nil
}

func getRequest(tx *gorm.DB, wsID, requestID uint64) (Request, error) {
	var req Request
	if err := tx.Where("id = ? AND workspace_id = ?", requestID, wsID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Request{}, fmt.Errorf("%w: review request", apperr.ErrNotFound)
		}
		return Request{}, err
	}
	return req, nil
}

func getNote(tx *gorm.DB, wsID, noteID uint64) (note.Note, error) {
	var n note.Note
	if err := tx.Where("id = ? AND workspace_id = ?", noteID, wsID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return note.Note{}, fmt.Errorf("%w: note", apperr.ErrNotFound)
		}
		return note.Note{}, err
	}
	return n, nil
}
