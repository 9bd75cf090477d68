/*
store.go - Persistence interfaces for the program domain

PURPOSE:
  Defines the storage contracts the day manager, distribution processor,
  and reconciliation sweep depend on. Implementations: store/sqlite
  (production) and store/memory (tests/dev).

CONDITIONAL UPDATES:
  Counter mutations are store-level atomic operations rather than
  read-modify-write from callers. Two concurrent distributions for the same
  beneficiary cannot both pass the capacity guard: the store applies the
  guard and the increment in a single step and reports a lost race as
  ErrProgramOverrun.

NOT-FOUND CONVENTION:
  Getters return (nil, nil) when the entity is absent. Mutations against a
  missing entity return ErrNotFound.

SEE ALSO:
  - store/memory: in-memory implementation
  - store/sqlite: SQLite implementation
*/
package program

import "context"

// BeneficiaryStore persists beneficiaries and their progress counters.
type BeneficiaryStore interface {
	// CreateBeneficiary inserts a new beneficiary. Returns ErrConflict if a
	// beneficiary with the same national ID already exists.
	CreateBeneficiary(ctx context.Context, b Beneficiary) error

	// GetBeneficiary returns the beneficiary or (nil, nil) when absent.
	GetBeneficiary(ctx context.Context, id BeneficiaryID) (*Beneficiary, error)

	// ListBeneficiaries returns all beneficiaries.
	ListBeneficiaries(ctx context.Context) ([]Beneficiary, error)

	// UpdateStatus sets the lifecycle status. Completed is terminal: the
	// guard and the write are one atomic step, and a beneficiary whose
	// status is already completed returns ErrConflict. The reconciliation
	// path is the only caller that sets StatusCompleted.
	UpdateStatus(ctx context.Context, id BeneficiaryID, status Status) error

	// AdjustCounters atomically applies the deltas to the progress counters,
	// clamps them (total >= 0, 0 <= completed <= total), recomputes
	// AttendanceRate, persists, and returns the updated
	// record. Returns ErrNotFound if the beneficiary is absent.
	AdjustCounters(ctx context.Context, id BeneficiaryID, totalDelta, completedDelta int) (*Beneficiary, error)

	// IncrementCompletedIfCapacity increments CompletedDays by one only if
	// CompletedDays < TotalProgramDays, as a single atomic step, and
	// recomputes AttendanceRate. Returns ErrProgramOverrun when the guard
	// fails and ErrNotFound when the beneficiary is absent. This is the
	// distribution path's capacity gate.
	IncrementCompletedIfCapacity(ctx context.Context, id BeneficiaryID) (*Beneficiary, error)

	// DeleteBeneficiary removes the beneficiary and cascades to its
	// program days. Returns ErrNotFound if absent.
	DeleteBeneficiary(ctx context.Context, id BeneficiaryID) error
}

// ProgramDayStore persists the owned ProgramDay children.
type ProgramDayStore interface {
	// InsertDay adds a program day. Returns ErrConflict (DuplicateDayError)
	// if the day number already exists for the beneficiary, ErrNotFound if
	// the beneficiary is absent.
	InsertDay(ctx context.Context, d ProgramDay) error

	// GetDay returns the day only if it belongs to the beneficiary,
	// (nil, nil) otherwise.
	GetDay(ctx context.Context, beneficiaryID BeneficiaryID, dayID DayID) (*ProgramDay, error)

	// UpdateDay rewrites an existing day record. Returns ErrNotFound if the
	// day is absent.
	UpdateDay(ctx context.Context, d ProgramDay) error

	// DeleteDay removes the day. Returns ErrNotFound if the day does not
	// belong to the beneficiary.
	DeleteDay(ctx context.Context, beneficiaryID BeneficiaryID, dayID DayID) error

	// ListDays returns the beneficiary's days ordered by day number.
	ListDays(ctx context.Context, beneficiaryID BeneficiaryID) ([]ProgramDay, error)
}

// Store combines the program-domain persistence interfaces.
type Store interface {
	BeneficiaryStore
	ProgramDayStore
}
