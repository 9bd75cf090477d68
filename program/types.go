/*
Package program provides the core beneficiary tracking domain.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  beneficiaries through a multi-day nutrition support program: program-day
  enrollment, attendance counters, and completion status derivation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Beneficiary: A person enrolled in the program, with progress counters
  - ProgramDay: One scheduled unit of a beneficiary's program
  - Status/BeneficiaryType/ActivityType: Closed enumerations

INVARIANTS:
  - 0 <= CompletedDays <= TotalProgramDays at all times
  - AttendanceRate == round(CompletedDays / TotalProgramDays * 100)
    when TotalProgramDays > 0, else 0
  Counters are only mutated through the DayManager and the distribution
  processor, both of which restore these after every write.

SEE ALSO:
  - progress.go: Pure calculators for the derived fields
  - days.go: DayManager keeping counters in sync with ProgramDay records
  - reconcile.go: Status derivation sweep
*/
package program

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BeneficiaryID string
type DayID string
type WorkerID string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// BeneficiaryType classifies who the program supports.
type BeneficiaryType string

const (
	TypePregnant      BeneficiaryType = "pregnant"
	TypeBreastfeeding BeneficiaryType = "breastfeeding"
	TypeChild         BeneficiaryType = "child"
)

func ValidBeneficiaryType(t BeneficiaryType) bool {
	switch t {
	case TypePregnant, TypeBreastfeeding, TypeChild:
		return true
	}
	return false
}

// Status is the beneficiary lifecycle state.
//
// Transitions:
//   active -> completed   one-way, only via the reconciliation path
//   active <-> inactive   externally settable
// No transition out of completed is defined.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

// ActivityType describes what a program day records.
type ActivityType string

const (
	ActivityCheckIn    ActivityType = "check-in"
	ActivityAttendance ActivityType = "attendance"
	ActivityActivity   ActivityType = "activity"
	ActivityAssessment ActivityType = "assessment"
)

func ValidActivityType(t ActivityType) bool {
	switch t {
	case ActivityCheckIn, ActivityAttendance, ActivityActivity, ActivityAssessment:
		return true
	}
	return false
}

// MaxNotesLen bounds the free-text notes on a program day.
const MaxNotesLen = 500

// =============================================================================
// BENEFICIARY
// =============================================================================

type Beneficiary struct {
	ID         BeneficiaryID
	NationalID string // unique
	Name       string
	Type       BeneficiaryType
	Status     Status
	WorkerID   WorkerID // assigned field worker

	// Progress counters. AttendanceRate is derived and stored only so
	// reads never need the day records.
	TotalProgramDays int
	CompletedDays    int
	AttendanceRate   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PROGRAM DAY
// =============================================================================

// ProgramDay belongs to exactly one beneficiary. DayNumber is unique per
// beneficiary. Deleting a beneficiary cascades to its days.
type ProgramDay struct {
	ID            DayID
	BeneficiaryID BeneficiaryID
	DayNumber     int
	Date          time.Time
	Attended      bool
	ActivityType  ActivityType
	Notes         string
	CreatedAt     time.Time
}
