package workspace

import (
	"context"
	"net/http"
	"strconv"

	"caseflow/internal/auth"

	"github.com/go-chi/chi/v5"
)

type ctxKey string

const (
	wsIDKey ctxKey = "workspace_id"
	roleKey ctxKey = "workspace_role"
)

func IDFromContext(ctx context.Context) (uint64, bool) {
	v, ok := ctx.Value(wsIDKey).(uint64)
	return v, ok
}

func RoleFromContext(ctx context.Context) (Role, bool) {
	v, ok := ctx.Value(roleKey).(Role)
	return v, ok
}

// RequireMember resolves the {workspaceID} URL param, checks the caller
// is a member and stashes (workspace id, role) in the request context.
// Non-members get 404 rather than 403.
func RequireMember(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			wsID, err := strconv.ParseUint(chi.URLParam(r, "workspaceID"), 10, 64)
			if err != nil {
				http.Error(w, "invalid workspace id", http.StatusBadRequest)
				return
			}

			role, err := svc.RoleOf(r.Context(), wsID, uid)
			if err != nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}

			ctx := context.WithValue(r.Context(), wsIDKey, wsID)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
