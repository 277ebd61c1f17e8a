package workspace_test

import (
	"context"
	"errors"
	"testing"

	"caseflow/internal/apperr"
	"caseflow/internal/db"
	"caseflow/internal/workspace"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
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

func TestCreateEnrollsAdmin(t *testing.T) {
	gdb := newTestDB(t)
	svc := &workspace.Service{DB: gdb}
	ctx := context.Background()

	ws, err := svc.Create(ctx, 1, "cardiology ward")
	require.NoError(t, err)
	require.NotZero(t, ws.ID)

	role, err := svc.RoleOf(ctx, ws.ID, 1)
	require.NoError(t, err)
	require.Equal(t, workspace.RoleAdmin, role)
}

func TestCreateValidation(t *testing.T) {
	gdb := newTestDB(t)
	svc := &workspace.Service{DB: gdb}

	_, err := svc.Create(context.Background(), 1, "   ")
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAddMember(t *testing.T) {
	gdb := newTestDB(t)
	svc := &workspace.Service{DB: gdb}
	ctx := context.Background()

	ws, err := svc.Create(ctx, 1, "ward")
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, ws.ID, 1, 2, workspace.RoleContributor))

	role, err := svc.RoleOf(ctx, ws.ID, 2)
	require.NoError(t, err)
	require.Equal(t, workspace.RoleContributor, role)

	// duplicate
	err = svc.AddMember(ctx, ws.ID, 1, 2, workspace.RoleEditor)
	require.True(t, errors.Is(err, apperr.ErrConflict))

	// non-admin caller
	err = svc.AddMember(ctx, ws.ID, 2, 3, workspace.RoleViewer)
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	// non-member caller reported as not-found
	err = svc.AddMember(ctx, ws.ID, 99, 3, workspace.RoleViewer)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRoleOfNonMember(t *testing.T) {
	gdb := newTestDB(t)
	svc := &workspace.Service{DB: gdb}
	ctx := context.Background()

	ws, err := svc.Create(ctx, 1, "ward")
	require.NoError(t, err)

	_, err = svc.RoleOf(ctx, ws.ID, 42)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}
