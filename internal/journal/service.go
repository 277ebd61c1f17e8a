package journal

import (
	"context"
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

type Service struct {
	DB *gorm.DB
}

type GenerateInput struct {
	Year            int
	Month           int
	Title           string
	EditorialNote   *string
	RecommendedOnly bool
}

// Generate runs the aggregation for a period in two phases. Phase one
// claims the period with a generating row; phase two snapshots entries
// and promotes to draft in a single transaction. A failed phase two
// leaves the generating row behind rather than promoting a partial
// journal — Archive is the discard path before regenerating.
func (s *Service) Generate(ctx context.Context, wsID, actorID uint64, role workspace.Role, in GenerateInput) (Journal, error) {
	if !role.CanGenerate() {
		return Journal{}, fmt.Errorf("%w: generation requires editor or admin", apperr.ErrForbidden)
	}
	if in.Month < 1 || in.Month > 12 {
		return Journal{}, fmt.Errorf("%w: month out of range", apperr.ErrValidation)
	}
	if in.Year < 1970 || in.Year > 9999 {
		return Journal{}, fmt.Errorf("%w: year out of range", apperr.ErrValidation)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("%s %d", time.Month(in.Month).String(), in.Year)
	}

	j := Journal{
		WorkspaceID:   wsID,
		Year:          in.Year,
		Month:         in.Month,
		Title:         title,
		EditorialNote: in.EditorialNote,
		Status:        StatusGenerating,
		GeneratedBy:   actorID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	// Phase one: claim the period. The uniqueness check happens inside
	// the transaction; postgres additionally backs it with a partial
	// unique index.
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&Journal{}).
			Where("workspace_id = ? AND year = ? AND month = ? AND status <> ?", wsID, in.Year, in.Month, StatusArchived).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: journal already exists for this period", apperr.ErrConflict)
		}
		return tx.Create(&j).Error
	})
	if err != nil {
		return Journal{}, err
	}

	// Phase two: snapshot and promote.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		start := time.Date(in.Year, time.Month(in.Month), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)

		q := tx.Where("workspace_id = ? AND status = ?", wsID, note.StatusPublished).
			Where("published_at >= ? AND published_at < ?", start, end)
		if in.RecommendedOnly {
			q = q.Where("recommend_for_journal = ?", true)
		}

		var notes []note.Note
		if err := q.Order("published_at asc").Find(&notes).Error; err != nil {
			return err
		}

		for i := range notes {
			e := Entry{
				JournalID:   j.ID,
				WorkspaceID: wsID,
				NoteID:      notes[i].ID,
				Position:    i + 1,
				Title:       notes[i].Title,
				AuthorID:    notes[i].AuthorID,
				PublishedAt: *notes[i].PublishedAt,
				CreatedAt:   time.Now(),
			}
			if err := tx.Create(&e).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&Journal{}).
			Where("id = ? AND workspace_id = ? AND status = ?", j.ID, wsID, StatusGenerating).
			Updates(map[string]any{"status": StatusDraft, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: journal status changed concurrently", apperr.ErrConflict)
		}
		return nil
	})
	if err != nil {
		// the generating row stays behind for inspection/discard
		return Journal{}, err
	}

	j.Status = StatusDraft
	return j, nil
}

// Publish moves a draft journal to published and notifies the generator.
func (s *Service) Publish(ctx context.Context, wsID, journalID, actorID uint64, role workspace.Role) (Journal, error) {
	if !role.CanPublish() {
		return Journal{}, fmt.Errorf("%w: publishing requires editor or admin", apperr.ErrForbidden)
	}

	var j Journal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		j, err = getTx(tx, wsID, journalID)
		if err != nil {
			return err
		}
		if j.Status != StatusDraft {
			return fmt.Errorf("%w: cannot publish a %s journal", apperr.ErrInvalidTransition, j.Status)
		}

		now := time.Now()
		res := tx.Model(&Journal{}).
			Where("id = ? AND workspace_id = ? AND status = ?", journalID, wsID, StatusDraft).
			Updates(map[string]any{"status": StatusPublished, "published_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: journal status changed concurrently", apperr.ErrConflict)
		}
		j.Status = StatusPublished
		j.PublishedAt = &now

		return jobs.EnqueueNotify(tx, j.GeneratedBy, notify.KindJournalPublished, map[string]any{
			"journal_id": j.ID, "year": j.Year, "month": j.Month,
		})
	})
	if err != nil {
		return Journal{}, err
	}
	return j, nil
}

// Archive is one-way and legal from any status; it also discards a
// journal stuck in generating so the period can be regenerated.
func (s *Service) Archive(ctx context.Context, wsID, journalID, actorID uint64, role workspace.Role) error {
	if !role.CanGenerate() {
		return fmt.Errorf("%w: archiving requires editor or admin", apperr.ErrForbidden)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		j, err := getTx(tx, wsID, journalID)
		if err != nil {
			return err
		}
		if j.Status == StatusArchived {
			return fmt.Errorf("%w: already archived", apperr.ErrInvalidTransition)
		}

		res := tx.Model(&Journal{}).
			Where("id = ? AND workspace_id = ? AND status = ?", journalID, wsID, j.Status).
			Updates(map[string]any{"status": StatusArchived, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: journal status changed concurrently", apperr.ErrConflict)
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, wsID, journalID uint64) (Journal, []Entry, error) {
	j, err := getTx(s.DB.WithContext(ctx), wsID, journalID)
	if err != nil {
		return Journal{}, nil, err
	}
	var entries []Entry
	err = s.DB.WithContext(ctx).
		Where("journal_id = ? AND workspace_id = ?", journalID, wsID).
		Order("position asc").Find(&entries).Error
	if err != nil {
		return Journal{}, nil, err
	}
	return j, entries, nil
}

type ListFilter struct {
	Status   *Status
	Year     *int
	Page     int
	PageSize int
}

// List is a paginated projection ordered by period descending.
func (s *Service) List(ctx context.Context, wsID uint64, f ListFilter) ([]Journal, int64, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	q := s.DB.WithContext(ctx).Model(&Journal{}).Where("workspace_id = ?", wsID)
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Year != nil {
		q = q.Where("year = ?", *f.Year)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Journal
	err := q.Order("year desc, month desc").
		Offset((page - 1) * size).Limit(size).
		Find(&out).Error
	return out, total, err
}

func getTx(tx *gorm.DB, wsID, journalID uint64) (Journal, error) {
	var j Journal
	if err := tx.Where("id = ? AND workspace_id = ?", journalID, wsID).First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Journal{}, fmt.Errorf("%w: journal", apperr.ErrNotFound)
		}
		return Journal{}, err
	}
	return j, nil
}
