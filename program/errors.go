/*
errors.go - Centralized error taxonomy

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Stores and the inventory package wrap these sentinels with additional
  context; the API layer maps them to HTTP status codes.

ERROR CATEGORIES:
  1. Input errors     - InvalidArgument (client-fixable, no retry)
  2. Lookup errors    - NotFound
  3. Uniqueness       - Conflict (duplicate day number, duplicate national ID)
  4. Capacity errors  - OutOfStock, ProgramOverrun
  A conditional update that loses a race reports the capacity error the
  guard protects (ProgramOverrun or OutOfStock), never a separate code.

USAGE:
  if errors.Is(err, program.ErrProgramOverrun) {
      ...
  }

SEE ALSO:
  - inventory: wraps ErrOutOfStock with quantities
  - api/handlers.go: status-code mapping
*/
package program

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned for malformed or missing input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a uniqueness violation, e.g. a duplicate
	// day number for the same beneficiary or a duplicate national ID.
	ErrConflict = errors.New("conflict")

	// ErrOutOfStock is returned when a stock record is missing or holds
	// less than the requested quantity.
	ErrOutOfStock = errors.New("insufficient stock")

	// ErrProgramOverrun is returned when a distribution would push
	// CompletedDays past TotalProgramDays.
	ErrProgramOverrun = errors.New("program capacity reached")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateDayError reports a dayNumber uniqueness violation.
type DuplicateDayError struct {
	BeneficiaryID BeneficiaryID
	DayNumber     int
}

func (e *DuplicateDayError) Error() string {
	return fmt.Sprintf("day %d already enrolled for beneficiary %s", e.DayNumber, e.BeneficiaryID)
}

func (e *DuplicateDayError) Unwrap() error { return ErrConflict }

// ProgramOverrunError reports an attendance-at-capacity rejection.
type ProgramOverrunError struct {
	BeneficiaryID    BeneficiaryID
	CompletedDays    int
	TotalProgramDays int
}

func (e *ProgramOverrunError) Error() string {
	return fmt.Sprintf("beneficiary %s already completed %d of %d program days",
		e.BeneficiaryID, e.CompletedDays, e.TotalProgramDays)
}

func (e *ProgramOverrunError) Unwrap() error { return ErrProgramOverrun }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// and retrying without changes cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrProgramOverrun)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
