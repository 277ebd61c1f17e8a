package workspace

import "time"

// Workspace is the tenant boundary. Every note, review request, audit
// entry and journal belongs to exactly one workspace.
type Workspace struct {
	ID        uint64    `gorm:"primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	CreatedBy uint64    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type Membership struct {
	WorkspaceID uint64    `gorm:"primaryKey"`
	UserID      uint64    `gorm:"primaryKey"`
	Role        Role      `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}
