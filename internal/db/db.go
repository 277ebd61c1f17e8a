package db

import (
	"fmt"

	"caseflow/internal/auth"
	"caseflow/internal/jobs"
	"caseflow/internal/journal"
	"caseflow/internal/note"
	"caseflow/internal/review"
	"caseflow/internal/workspace"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate creates tables. Driver-agnostic: tests run it against sqlite.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&auth.User{},
		&workspace.Workspace{},
		&workspace.Membership{},
		&note.Note{},
		&review.Request{},
		&review.Action{},
		&journal.Journal{},
		&journal.Entry{},
		&jobs.Job{},
	)
}

// Indexes applies postgres-specific constraints. The partial unique
// indexes are backstops for invariants the services already enforce
// inside their transactions: one open review request per note, one
// non-archived journal per period.
func Indexes(gdb *gorm.DB) error {
	stmts := []string{
		`create unique index if not exists uq_review_requests_open
		 on review_requests(note_id)
		 where status in ('pending', 'in_review');`,

		`create unique index if not exists uq_journals_period
		 on journals(workspace_id, year, month)
		 where status <> 'archived';`,

		`create index if not exists idx_review_actions_request on review_actions(request_id, id);`,
		`create index if not exists idx_notes_ws_status on notes(workspace_id, status);`,
		`create index if not exists idx_notes_published on notes(workspace_id, published_at) where status = 'published';`,
		`create index if not exists idx_journals_period on journals(workspace_id, year desc, month desc);`,

		// Tag filter (GIN for text[])
		`create index if not exists idx_notes_tags on notes using gin (tags);`,

		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := Migrate(gdb); err != nil {
		return err
	}
	return Indexes(gdb)
}
