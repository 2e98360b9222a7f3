package engine

import (
	"errors"
	"fmt"
)

// Business failures are values, never panics. Callers branch with errors.Is.
var (
	// ErrValidation covers bad input: non-positive price, missing required
	// fields, an ineligible bidder.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means the referenced job, provider or bid does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIllegalTransition means the requested status change violates the
	// lifecycle graph or the caller may not drive it.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrConflict means a race was lost, e.g. a second acceptance on a job
	// that has already been decided.
	ErrConflict = errors.New("conflict")

	// ErrClosed means a bid or timeline mutation was attempted on a job
	// that no longer accepts it.
	ErrClosed = errors.New("job closed")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
