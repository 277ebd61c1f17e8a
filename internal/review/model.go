package review

import (
	"encoding/json"
	"fmt"
	"time"

	"caseflow/internal/apperr"
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusInReview         Status = "in_review"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusChangesRequested Status = "changes_requested"
)

// Open reports whether the request still awaits a verdict.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInReview
}

// Terminal reports whether a verdict has been delivered.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusChangesRequested
}

// Reopenable: approved is terminal for good, the other two verdicts may
// cycle back to pending.
func (s Status) Reopenable() bool {
	return s == StatusRejected || s == StatusChangesRequested
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityNormal, nil
	}
	switch Priority(s) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return Priority(s), nil
	}
	return "", fmt.Errorf("%w: unknown priority %q", apperr.ErrValidation, s)
}

// Request is the workflow state for one round of review on a note. Its
// status column is a materialized projection of the action trail below;
// ReplayStatus over the trail must always reproduce it.
type Request struct {
	ID          uint64  `gorm:"primaryKey"`
	NoteID      uint64  `gorm:"index;not null"`
	WorkspaceID uint64  `gorm:"index;not null"`
	RequesterID uint64  `gorm:"not null"`
	ReviewerID  *uint64 `gorm:"index"`

	Priority Priority `gorm:"type:text;not null"`
	DueDate  *time.Time

	Status Status `gorm:"type:text;not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Request) TableName() string { return "review_requests" }

type ActionKind string

const (
	ActionSubmitted         ActionKind = "submitted"
	ActionAssigned          ActionKind = "assigned"
	ActionApproved          ActionKind = "approved"
	ActionRejected          ActionKind = "rejected"
	ActionChangesRequested  ActionKind = "changes_requested"
	ActionCommentAdded      ActionKind = "comment_added"
	ActionRevisionSubmitted ActionKind = "revision_submitted"
	ActionReopened          ActionKind = "reopened"
)

// Action is one append-only audit row. Rows are never updated or deleted;
// creation order (id ascending) is the canonical history of the request.
type Action struct {
	ID          uint64 `gorm:"primaryKey"`
	RequestID   uint64 `gorm:"index;not null"`
	WorkspaceID uint64 `gorm:"index;not null"`
	ActorID     uint64 `gorm:"not null"`

	Kind     ActionKind      `gorm:"column:action;type:text;not null"`
	Note     *string         `gorm:"type:text"`
	Metadata json.RawMessage `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null"`
}

func (Action) TableName() string { return "review_actions" }
