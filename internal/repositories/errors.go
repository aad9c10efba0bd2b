package repositories

import "errors"

// Sentinel errors surfaced by every repository implementation. Handlers and
// services match on them with errors.Is rather than on message text.
var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when an insert violates the unique
	// index on users.email. The index, not an application-level check,
	// is what arbitrates concurrent signups for the same address.
	ErrDuplicateEmail = errors.New("email already in use")
)
