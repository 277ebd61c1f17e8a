package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"caseflow/internal/apperr"

	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Create makes a workspace and enrolls the creator as its admin.
func (s *Service) Create(ctx context.Context, actorID uint64, name string) (Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workspace{}, fmt.Errorf("%w: workspace name required", apperr.ErrValidation)
	}

	ws := Workspace{Name: name, CreatedBy: actorID, CreatedAt: time.Now()}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ws).Error; err != nil {
			return err
		}
		m := Membership{WorkspaceID: ws.ID, UserID: actorID, Role: RoleAdmin, CreatedAt: time.Now()}
		return tx.Create(&m).Error
	})
	if err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

// AddMember enrolls userID with the given role. Caller must be an admin
// of the workspace.
func (s *Service) AddMember(ctx context.Context, wsID, actorID, userID uint64, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actorRole, err := roleOf(tx, wsID, actorID)
		if err != nil {
			return err
		}
		if !actorRole.CanManageMembers() {
			return fmt.Errorf("%w: only admins manage members", apperr.ErrForbidden)
		}

		var existing Membership
		err = tx.Where("workspace_id = ? AND user_id = ?", wsID, userID).First(&existing).Error
		if err == nil {
			return fmt.Errorf("%w: already a member", apperr.ErrConflict)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		m := Membership{WorkspaceID: wsID, UserID: userID, Role: role, CreatedAt: time.Now()}
		return tx.Create(&m).Error
	})
}

// RoleOf resolves the caller's role in a workspace. Non-members get
// not-found, never forbidden, so workspace existence does not leak.
func (s *Service) RoleOf(ctx context.Context, wsID, userID uint64) (Role, error) {
	return roleOf(s.DB.WithContext(ctx), wsID, userID)
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Workspace, error) {
	var out []Workspace
	err := s.DB.WithContext(ctx).
		Model(&Workspace{}).
		Select("workspaces.*").
		Joins("JOIN memberships ON memberships.workspace_id = workspaces.id").
		Where("memberships.user_id = ?", userID).
		Order("workspaces.id asc").
		Find(&out).Error
	return out, err
}

func roleOf(tx *gorm.DB, wsID, userID uint64) (Role, error) {
	var m Membership
	if err := tx.Where("workspace_id = ? AND user_id = ?", wsID, userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: workspace", apperr.ErrNotFound)
		}
		return "", err
	}
	return m.Role, nil
}
