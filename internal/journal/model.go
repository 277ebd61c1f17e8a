package journal

import "time"

type Status string

const (
	StatusGenerating Status = "generating"
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusArchived   Status = "archived"
)

// Journal compiles the published notes of one (workspace, year, month)
// period. At most one non-archived journal exists per period. A journal
// stays in generating until every entry is snapshotted, so readers never
// see a half-populated draft.
type Journal struct {
	ID          uint64 `gorm:"primaryKey"`
	WorkspaceID uint64 `gorm:"index;not null"`

	Year  int `gorm:"not null"`
	Month int `gorm:"not null"`

	Title         string  `gorm:"type:text;not null"`
	EditorialNote *string `gorm:"type:text"`

	Status      Status `gorm:"type:text;not null;index"`
	GeneratedBy uint64 `gorm:"not null"`

	PublishedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// Entry is a generation-time snapshot of one selected note. Read-only
// after generation; regeneration replaces the whole set.
type Entry struct {
	ID          uint64 `gorm:"primaryKey"`
	JournalID   uint64 `gorm:"index;not null"`
	WorkspaceID uint64 `gorm:"index;not null"`
	NoteID      uint64 `gorm:"not null"`

	Position    int       `gorm:"not null"`
	Title       string    `gorm:"type:text;not null"`
	AuthorID    uint64    `gorm:"not null"`
	PublishedAt time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
}

func (Entry) TableName() string { return "journal_entries" }
