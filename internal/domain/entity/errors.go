package entity

import "errors"

// Error taxonomy shared by services and repositories. Callers discriminate
// with errors.Is; the HTTP layer maps each kind to a status code.
var (
	// ErrValidation is returned for bad input shape or range.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a task, approval or user is missing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on uniqueness violations, e.g. a duplicate
	// task code or a second approval request for the same (task, level).
	ErrConflict = errors.New("conflict")

	// ErrAlreadyProcessed is returned when deciding an approval that is
	// no longer pending.
	ErrAlreadyProcessed = errors.New("approval already processed")

	// ErrUnauthorized is returned when the actor lacks the capability or
	// role match for the operation.
	ErrUnauthorized = errors.New("not authorized")

	// ErrStorage wraps transport or transaction failures from the
	// persistence layer.
	ErrStorage = errors.New("storage failure")
)
