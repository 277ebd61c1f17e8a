// Package apperr holds the error taxonomy shared by every service.
// Services wrap these sentinels with context (fmt.Errorf("%w: ...")) and
// the HTTP layer maps them to status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation: malformed or empty input (blank comment, bad priority).
	ErrValidation = errors.New("validation error")

	// ErrNotFound: entity absent or outside the caller's workspace.
	// Workspace-scoping failures are always reported as not-found so
	// existence never leaks across tenants.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: authenticated but role/ownership insufficient.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition: the state machine rejects the requested move.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConflict: optimistic-concurrency or uniqueness violation.
	ErrConflict = errors.New("conflict")
)
