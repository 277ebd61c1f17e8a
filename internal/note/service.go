package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"caseflow/internal/apperr"
	"caseflow/internal/workspace"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Service is the note lifecycle controller. Besides CRUD glue it exposes
// exactly two forward status actions, Publish and Archive; every other
// status change is a side effect of the review workflow.
type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Title               string
	Body                string
	Topic               *string
	Tags                []string
	RecommendForJournal bool
}

type UpdateInput struct {
	Title               string
	Body                string
	Topic               *string
	Tags                []string
	RecommendForJournal *bool
}

func (s *Service) Create(ctx context.Context, wsID, authorID uint64, role workspace.Role, in CreateInput) (Note, error) {
	if !role.CanAuthor() {
		return Note{}, fmt.Errorf("%w: viewers cannot author notes", apperr.ErrForbidden)
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Note{}, fmt.Errorf("%w: title required", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.Body) == "" {
		return Note{}, fmt.Errorf("%w: body required", apperr.ErrValidation)
	}

	n := Note{
		WorkspaceID:         wsID,
		AuthorID:            authorID,
		Title:               in.Title,
		Body:                in.Body,
		Topic:               in.Topic,
		Tags:                pq.StringArray(normalizeTags(in.Tags)),
		RecommendForJournal: in.RecommendForJournal,
		Status:              StatusDraft,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return Note{}, err
	}
	return n, nil
}

// Update edits a draft note. Only the author (or an admin) may edit, and
// only while the note is in draft — under_review and later statuses are
// frozen from the author's side.
func (s *Service) Update(ctx context.Context, wsID, noteID, actorID uint64, role workspace.Role, in UpdateInput) (Note, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Note{}, fmt.Errorf("%w: title required", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.Body) == "" {
		return Note{}, fmt.Errorf("%w: body required", apperr.ErrValidation)
	}

	var n Note
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = getTx(tx, wsID, noteID)
		if err != nil {
			return err
		}
		if n.AuthorID != actorID && !role.IsAdmin() {
			return fmt.Errorf("%w: not the author", apperr.ErrForbidden)
		}
		if n.Status != StatusDraft {
			return fmt.Errorf("%w: only draft notes can be edited", apperr.ErrInvalidTransition)
		}

		n.Title = in.Title
		n.Body = in.Body
		n.Topic = in.Topic
		n.Tags = pq.StringArray(normalizeTags(in.Tags))
		if in.RecommendForJournal != nil {
			n.RecommendForJournal = *in.RecommendForJournal
		}
		n.UpdatedAt = time.Now()
		return tx.Save(&n).Error
	})
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, wsID, noteID uint64) (Note, error) {
	return getTx(s.DB.WithContext(ctx), wsID, noteID)
}

type ListFilter struct {
	Status   *Status
	AuthorID *uint64
	Limit    int
}

func (s *Service) List(ctx context.Context, wsID uint64, f ListFilter) ([]Note, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.DB.WithContext(ctx).Where("workspace_id = ?", wsID)
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.AuthorID != nil {
		q = q.Where("author_id = ?", *f.AuthorID)
	}

	var out []Note
	err := q.Order("updated_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// Publish moves an approved note to published and stamps the publish
// time. Publication is forward-only and restricted to admins/editors.
func (s *Service) Publish(ctx context.Context, wsID, noteID, actorID uint64, role workspace.Role) (Note, error) {
	if !role.CanPublish() {
		return Note{}, fmt.Errorf("%w: publishing requires editor or admin", apperr.ErrForbidden)
	}

	var n Note
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = getTx(tx, wsID, noteID)
		if err != nil {
			return err
		}
		if n.Status != StatusApproved {
			return fmt.Errorf("%w: cannot publish a %s note", apperr.ErrInvalidTransition, n.Status)
		}

		now := time.Now()
		res := tx.Model(&Note{}).
			Where("id = ? AND workspace_id = ? AND status = ?", noteID, wsID, StatusApproved).
			Updates(map[string]any{"status": StatusPublished, "published_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: note status changed concurrently", apperr.ErrConflict)
		}
		n.Status = StatusPublished
		n.PublishedAt = &now
		n.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

// Archive is one-way and allowed from any live status.
func (s *Service) Archive(ctx context.Context, wsID, noteID, actorID uint64, role workspace.Role) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := getTx(tx, wsID, noteID)
		if err != nil {
			return err
		}
		if n.AuthorID != actorID && !role.CanPublish() {
			return fmt.Errorf("%w: archiving requires authorship or editor/admin", apperr.ErrForbidden)
		}
		if n.Status == StatusArchived {
			return fmt.Errorf("%w: already archived", apperr.ErrInvalidTransition)
		}

		res := tx.Model(&Note{}).
			Where("id = ? AND workspace_id = ? AND status = ?", noteID, wsID, n.Status).
			Updates(map[string]any{"status": StatusArchived, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: note status changed concurrently", apperr.ErrConflict)
		}
		return nil
	})
}

func getTx(tx *gorm.DB, wsID, noteID uint64) (Note, error) {
	var n Note
	if err := tx.Where("id = ? AND workspace_id = ?", noteID, wsID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Note{}, fmt.Errorf("%w: note", apperr.ErrNotFound)
		}
		return Note{}, err
	}
	return n, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) >= 20 {
			break
		}
	}
	return out
}
