package domain

import "errors"

var (
	// ErrNotFound means the booking or guide does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed means the requested transition is illegal for
	// the booking's current status.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrVersionConflict means a conditional write lost the race: the row
	// exists but its version no longer matches the one the caller read.
	// Callers should re-read and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrValidation means the input is malformed.
	ErrValidation = errors.New("validation error")

	// ErrForbidden means the actor is not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")
)
