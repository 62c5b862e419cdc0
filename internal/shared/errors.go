package shared

import "errors"

var (
	// ErrValidation marks malformed or out-of-range input. Nothing is mutated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing record or one the actor may not see.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks missing catalog reference data.
	ErrConfiguration = errors.New("catalog configuration error")
	// ErrAuthorization marks an actor whose role is insufficient.
	ErrAuthorization = errors.New("not authorized")
	// ErrConflict indicates another request currently holds the record.
	ErrConflict = errors.New("concurrent modification")
)
