// Package repo contains the storage interfaces and their PostgreSQL
// implementations. Repos take caller-supplied timestamps so expiry decisions
// stay with the service clock rather than the database clock.
package repo

import "errors"

var (
	// ErrNotFound is returned when no row matches (or the row is no longer usable,
	// e.g. an expired verification token).
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")
)
