package note

import (
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	StatusDraft       Status = "draft"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusPublished   Status = "published"
	StatusArchived    Status = "archived"
)

// Note is a clinical case note. Status moves only through the review
// service's verdicts or the explicit Publish/Archive actions below; a
// note reaches published only by passing through approved.
type Note struct {
	ID          uint64  `gorm:"primaryKey"`
	WorkspaceID uint64  `gorm:"index;not null"`
	AuthorID    uint64  `gorm:"index;not null"`
	Title       string  `gorm:"type:text;not null"`
	Body        string  `gorm:"type:text;not null"`
	Topic       *string `gorm:"type:text"`

	Tags pq.StringArray `gorm:"type:text[]"`

	RecommendForJournal bool   `gorm:"not null;default:false"`
	Status              Status `gorm:"type:text;not null;index"`

	PublishedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
