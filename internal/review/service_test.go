package review_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"caseflow/internal/apperr"
	"caseflow/internal/db"
	"caseflow/internal/jobs"
	"caseflow/internal/note"
	"caseflow/internal/review"
	"caseflow/internal/workspace"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	wsID      = uint64(1)
	authorID  = uint64(10)
	editorID  = uint64(20)
	reviewer  = uint64(30)
	bystander = uint64(40)
	adminID   = uint64(50)
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func seedNote(t *testing.T, gdb *gorm.DB) note.Note {
	t.Helper()
	svc := &note.Service{DB: gdb}
	n, err := svc.Create(context.Background(), wsID, authorID, workspace.RoleContributor, note.CreateInput{
		Title: "post-op observations",
		Body:  "patient stable overnight",
		Tags:  []string{"surgery"},
	})
	require.NoError(t, err)
	return n
}

func noteStatus(t *testing.T, gdb *gorm.DB, id uint64) note.Status {
	t.Helper()
	var n note.Note
	require.NoError(t, gdb.First(&n, id).Error)
	return n.Status
}

func actionKinds(t *testing.T, svc *review.Service, reqID uint64) []review.ActionKind {
	t.Helper()
	actions, err := svc.ListActions(context.Background(), wsID, reqID, 0)
	require.NoError(t, err)
	out := make([]review.ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

// requireReplayEquals asserts the stored status matches the fold of the
// audit trail, the core projection invariant.
func requireReplayEquals(t *testing.T, svc *review.Service, reqID uint64) {
	t.Helper()
	req, err := svc.Get(context.Background(), wsID, reqID)
	require.NoError(t, err)
	actions, err := svc.ListActions(context.Background(), wsID, reqID, 0)
	require.NoError(t, err)
	require.Equal(t, req.Status, review.ReplayStatus(actions))
}

func TestSubmitForReview(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)

	req, err := svc.CreateReviewRequest(context.Background(), wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)
	require.Equal(t, review.StatusPending, req.Status)
	require.Equal(t, review.PriorityNormal, req.Priority)
	require.Nil(t, req.ReviewerID)

	require.Equal(t, note.StatusUnderReview, noteStatus(t, gdb, n.ID))
	require.Equal(t, []review.ActionKind{review.ActionSubmitted}, actionKinds(t, svc, req.ID))
	requireReplayEquals(t, svc, req.ID)
}

func TestSubmitWithPresetReviewer(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)

	rid := reviewer
	req, err := svc.CreateReviewRequest(context.Background(), wsID, n.ID, editorID, workspace.RoleEditor, review.CreateInput{
		ReviewerID: &rid,
		Priority:   review.PriorityHigh,
	})
	require.NoError(t, err)
	require.Equal(t, review.StatusInReview, req.Status)
	require.Equal(t, []review.ActionKind{review.ActionSubmitted, review.ActionAssigned}, actionKinds(t, svc, req.ID))
	requireReplayEquals(t, svc, req.ID)
}

func TestSubmitPermissions(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)

	// someone else's note, plain contributor
	_, err := svc.CreateReviewRequest(context.Background(), wsID, n.ID, bystander, workspace.RoleContributor, review.CreateInput{})
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	// bad priority
	_, err = svc.CreateReviewRequest(context.Background(), wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{
		Priority: "critical",
	})
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSubmitNonDraft(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)

	_, err := svc.CreateReviewRequest(context.Background(), wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)

	// note is under_review now
	_, err = svc.CreateReviewRequest(context.Background(), wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestOpenRequestUniqueness(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)

	_, err := svc.CreateReviewRequest(context.Background(), wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)

	// Force the note back to draft behind the service's back; the open
	// request must still block a second submission.
	require.NoError(t, gdb.Model(&note.Note{}).Where("id = ?", n.ID).
		Update("status", note.StatusDraft).Error)

	_, err = svc.CreateReviewRequest(context.Background(), wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.True(t, errors.Is(err, apperr.ErrConflict))

	var open int64
	require.NoError(t, gdb.Model(&review.Request{}).
		Where("note_id = ? AND status IN ?", n.ID, []review.Status{review.StatusPending, review.StatusInReview}).
		Count(&open).Error)
	require.EqualValues(t, 1, open)
}

func TestAssignReviewer(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)

	// contributors may not assign
	_, err = svc.AssignReviewer(ctx, wsID, req.ID, authorID, workspace.RoleContributor, review.AssignInput{ReviewerID: reviewer})
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	p := review.PriorityUrgent
	assigned, err := svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{
		ReviewerID: reviewer,
		Priority:   &p,
	})
	require.NoError(t, err)
	require.Equal(t, review.StatusInReview, assigned.Status)
	require.NotNil(t, assigned.ReviewerID)
	require.Equal(t, reviewer, *assigned.ReviewerID)
	require.Equal(t, review.PriorityUrgent, assigned.Priority)

	require.Equal(t, []review.ActionKind{review.ActionSubmitted, review.ActionAssigned}, actionKinds(t, svc, req.ID))
	requireReplayEquals(t, svc, req.ID)

	// the assigned entry carries reviewer metadata
	actions, err := svc.ListActions(ctx, wsID, req.ID, 0)
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(actions[1].Metadata, &meta))
	require.EqualValues(t, reviewer, meta["reviewer_id"])

	// a notification job was enqueued for the reviewer
	var j jobs.Job
	require.NoError(t, gdb.Where("user_id = ? AND type = ?", reviewer, jobs.TypeNotifyDispatch).First(&j).Error)
	require.Equal(t, "PENDING", j.Status)
}

func TestAssignTerminalRequest(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	req := approvedRequest(t, gdb, svc)

	_, err := svc.AssignReviewer(context.Background(), wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: bystander})
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestVerdictRejectedFlow(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)
	_, err = svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.NoError(t, err)

	comment := "missing vitals chart"
	err = svc.SubmitVerdict(ctx, wsID, req.ID, reviewer, workspace.RoleContributor, review.StatusRejected, &comment)
	require.NoError(t, err)

	got, err := svc.Get(ctx, wsID, req.ID)
	require.NoError(t, err)
	require.Equal(t, review.StatusRejected, got.Status)
	require.Equal(t, note.StatusDraft, noteStatus(t, gdb, n.ID))
	require.Equal(t, []review.ActionKind{review.ActionSubmitted, review.ActionAssigned, review.ActionRejected},
		actionKinds(t, svc, req.ID))
	requireReplayEquals(t, svc, req.ID)

	// reopen cycles back to pending and puts the note under review again
	require.NoError(t, svc.Reopen(ctx, wsID, req.ID, authorID, workspace.RoleContributor))

	got, err = svc.Get(ctx, wsID, req.ID)
	require.NoError(t, err)
	require.Equal(t, review.StatusPending, got.Status)
	require.Nil(t, got.ReviewerID)
	require.Equal(t, note.StatusUnderReview, noteStatus(t, gdb, n.ID))
	require.Equal(t,
		[]review.ActionKind{review.ActionSubmitted, review.ActionAssigned, review.ActionRejected, review.ActionReopened},
		actionKinds(t, svc, req.ID))
	requireReplayEquals(t, svc, req.ID)
}

func TestVerdictApproved(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	req := approvedRequest(t, gdb, svc)

	require.Equal(t, note.StatusApproved, noteStatus(t, gdb, req.NoteID))
	requireReplayEquals(t, svc, req.ID)

	// approved is not reopenable
	err := svc.Reopen(context.Background(), wsID, req.ID, authorID, workspace.RoleContributor)
	require.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestVerdictPermissions(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)
	_, err = svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.NoError(t, err)

	// neither the editor who assigned nor a bystander may decide
	err = svc.SubmitVerdict(ctx, wsID, req.ID, bystander, workspace.RoleContributor, review.StatusApproved, nil)
	require.True(t, errors.Is(err, apperr.ErrForbidden))
	err = svc.SubmitVerdict(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.StatusApproved, nil)
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	// an admin may override
	err = svc.SubmitVerdict(ctx, wsID, req.ID, adminID, workspace.RoleAdmin, review.StatusApproved, nil)
	require.NoError(t, err)
}

func TestVerdictRace(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	req := approvedRequest(t, gdb, svc)

	// second verdict observes the terminal status and conflicts
	err := svc.SubmitVerdict(context.Background(), wsID, req.ID, reviewer, workspace.RoleContributor, review.StatusRejected, nil)
	require.True(t, errors.Is(err, apperr.ErrConflict))

	// the note was not double-transitioned
	require.Equal(t, note.StatusApproved, noteStatus(t, gdb, req.NoteID))
}

func TestVerdictOnUnassignedRequest(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)

	err = svc.SubmitVerdict(ctx, wsID, req.ID, adminID, workspace.RoleAdmin, review.StatusApproved, nil)
	require.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestVerdictValidation(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}

	err := svc.SubmitVerdict(context.Background(), wsID, 1, adminID, workspace.RoleAdmin, review.StatusPending, nil)
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestReopenFromOpenStates(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)

	err = svc.Reopen(ctx, wsID, req.ID, authorID, workspace.RoleContributor)
	require.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.NoError(t, err)

	err = svc.Reopen(ctx, wsID, req.ID, authorID, workspace.RoleContributor)
	require.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestAddComment(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)

	err = svc.AddComment(ctx, wsID, req.ID, editorID, "   ")
	require.True(t, errors.Is(err, apperr.ErrValidation))

	require.NoError(t, svc.AddComment(ctx, wsID, req.ID, editorID, "please keep it brief"))

	// comments are legal in terminal states too and never move status
	_, err = svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitVerdict(ctx, wsID, req.ID, reviewer, workspace.RoleContributor, review.StatusChangesRequested, nil))
	require.NoError(t, svc.AddComment(ctx, wsID, req.ID, authorID, "will fix"))

	got, err := svc.Get(ctx, wsID, req.ID)
	require.NoError(t, err)
	require.Equal(t, review.StatusChangesRequested, got.Status)
	requireReplayEquals(t, svc, req.ID)
}

func TestRecordRevision(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)
	_, err = svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitVerdict(ctx, wsID, req.ID, reviewer, workspace.RoleContributor, review.StatusChangesRequested, nil))

	require.NoError(t, svc.RecordRevision(ctx, wsID, n.ID, authorID))

	kinds := actionKinds(t, svc, req.ID)
	require.Equal(t, review.ActionRevisionSubmitted, kinds[len(kinds)-1])
	requireReplayEquals(t, svc, req.ID)

	// no changes-requested request: silently a no-op
	other := seedNote(t, gdb)
	require.NoError(t, svc.RecordRevision(ctx, wsID, other.ID, authorID))
}

func TestWorkspaceScoping(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)

	otherWS := uint64(999)
	_, err = svc.Get(ctx, otherWS, req.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = svc.AssignReviewer(ctx, otherWS, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = svc.ListActions(ctx, otherWS, req.ID, 0)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListActionsCursor(t *testing.T) {
	gdb := newTestDB(t)
	svc := &review.Service{DB: gdb}
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)
	_, err = svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.NoError(t, err)

	all, err := svc.ListActions(ctx, wsID, req.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	rest, err := svc.ListActions(ctx, wsID, req.ID, all[0].ID)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, all[1].ID, rest[0].ID)
}

// approvedRequest drives a note through submit, assign and approve.
func approvedRequest(t *testing.T, gdb *gorm.DB, svc *review.Service) review.Request {
	t.Helper()
	n := seedNote(t, gdb)
	ctx := context.Background()

	req, err := svc.CreateReviewRequest(ctx, wsID, n.ID, authorID, workspace.RoleContributor, review.CreateInput{})
	require.NoError(t, err)
	_, err = svc.AssignReviewer(ctx, wsID, req.ID, editorID, workspace.RoleEditor, review.AssignInput{ReviewerID: reviewer})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitVerdict(ctx, wsID, req.ID, reviewer, workspace.RoleContributor, review.StatusApproved, nil))

	got, err := svc.Get(ctx, wsID, req.ID)
	require.NoError(t, err)
	require.Equal(t, review.StatusApproved, got.Status)
	return got
}
