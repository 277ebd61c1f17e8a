package workspace

import (
	"fmt"

	"caseflow/internal/apperr"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleEditor      Role = "editor"
	RoleContributor Role = "contributor"
	RoleViewer      Role = "viewer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleEditor, RoleContributor, RoleViewer:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, s)
}

// Capability predicates. All role-based branching in the services goes
// through these, never through inline string comparisons.

// CanAuthor: may create and edit own notes.
func (r Role) CanAuthor() bool {
	return r == RoleAdmin || r == RoleEditor || r == RoleContributor
}

// CanAssign: may assign reviewers and act on any note's review requests.
func (r Role) CanAssign() bool {
	return r == RoleAdmin || r == RoleEditor
}

// CanPublish: may publish approved notes and draft journals.
func (r Role) CanPublish() bool {
	return r == RoleAdmin || r == RoleEditor
}

// CanGenerate: may run journal generation for a period.
func (r Role) CanGenerate() bool {
	return r == RoleAdmin || r == RoleEditor
}

// CanManageMembers: may add members to the workspace.
func (r Role) CanManageMembers() bool {
	return r == RoleAdmin
}

// IsAdmin: overrides the assigned-reviewer check on verdicts.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
