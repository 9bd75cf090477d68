/*
days.go - Program-Day Manager

PURPOSE:
  Enrolls program days, toggles attendance, and removes days while keeping
  the beneficiary's progress counters in sync with the day records.

ONE LOGICAL UNIT:
  Each operation pairs a day mutation with a counter update. The counter
  update is a store-level atomic adjustment; if it fails, the day mutation
  is compensated (the day insert is deleted, the attendance write is
  reverted, the deleted day is re-inserted) so no orphaned day records are
  left behind.

COUNTER RULES:
  AddDay         totalProgramDays +1, completedDays unchanged
  SetAttendance  false->true: completedDays +1 (clamped at total)
                 true->false: completedDays -1 (floored at 0)
  RemoveDay      totalProgramDays -1 (floored at 0);
                 completedDays -1 if the removed day was attended
  AttendanceRate is recomputed by the store after every adjustment.

SEE ALSO:
  - store.go: AdjustCounters contract
  - progress.go: the derivations the store applies
*/
package program

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DayManager coordinates program-day mutations with counter updates.
type DayManager struct {
	Store Store
}

func NewDayManager(store Store) *DayManager {
	return &DayManager{Store: store}
}

// AddDayInput carries the fields for enrolling a new program day.
type AddDayInput struct {
	BeneficiaryID BeneficiaryID
	DayNumber     int
	Date          time.Time
	ActivityType  ActivityType
	Notes         string
}

func (in AddDayInput) validate() error {
	if in.BeneficiaryID == "" {
		return fmt.Errorf("%w: beneficiary id is required", ErrInvalidArgument)
	}
	if in.DayNumber < 1 {
		return fmt.Errorf("%w: day number must be >= 1", ErrInvalidArgument)
	}
	if !ValidActivityType(in.ActivityType) {
		return fmt.Errorf("%w: unknown activity type %q", ErrInvalidArgument, in.ActivityType)
	}
	if len(in.Notes) > MaxNotesLen {
		return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidArgument, MaxNotesLen)
	}
	return nil
}

// AddDay enrolls a new program day and raises totalProgramDays by one.
// The new day starts unattended, so completedDays is untouched.
func (m *DayManager) AddDay(ctx context.Context, in AddDayInput) (*ProgramDay, *Beneficiary, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	b, err := m.Store.GetBeneficiary(ctx, in.BeneficiaryID)
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, fmt.Errorf("beneficiary %s: %w", in.BeneficiaryID, ErrNotFound)
	}

	day := ProgramDay{
		ID:            DayID(uuid.NewString()),
		BeneficiaryID: in.BeneficiaryID,
		DayNumber:     in.DayNumber,
		Date:          in.Date,
		Attended:      false,
		ActivityType:  in.ActivityType,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     time.Now().UTC(),
	}

	if err := m.Store.InsertDay(ctx, day); err != nil {
		return nil, nil, err
	}

	updated, err := m.Store.AdjustCounters(ctx, in.BeneficiaryID, +1, 0)
	if err != nil {
		// Compensate: don't leave an orphaned day behind.
		if delErr := m.Store.DeleteDay(ctx, in.BeneficiaryID, day.ID); delErr != nil {
			log.Printf("[DayManager] compensation failed for day %s: %v", day.ID, delErr)
		}
		return nil, nil, err
	}

	return &day, updated, nil
}

// SetAttendance flips the attended flag on a day and moves completedDays
// accordingly. Setting a day to its current attendance value only rewrites
// the notes; the counters do not move.
func (m *DayManager) SetAttendance(ctx context.Context, beneficiaryID BeneficiaryID, dayID DayID, attended bool, notes *string) (*ProgramDay, *Beneficiary, error) {
	if notes != nil && len(*notes) > MaxNotesLen {
		return nil, nil, fmt.Errorf("%w: notes exceed %d characters", ErrInvalidArgument, MaxNotesLen)
	}

	day, err := m.Store.GetDay(ctx, beneficiaryID, dayID)
	if err != nil {
		return nil, nil, err
	}
	if day == nil {
		return nil, nil, fmt.Errorf("day %s for beneficiary %s: %w", dayID, beneficiaryID, ErrNotFound)
	}

	previous := *day
	day.Attended = attended
	if notes != nil {
		day.Notes = strings.TrimSpace(*notes)
	}

	if err := m.Store.UpdateDay(ctx, *day); err != nil {
		return nil, nil, err
	}

	delta := 0
	switch {
	case attended && !previous.Attended:
		delta = +1
	case !attended && previous.Attended:
		delta = -1
	}

	// The increment is clamped at totalProgramDays by the store: the day
	// write still succeeds, completedDays just stops at the cap.
	updated, err := m.Store.AdjustCounters(ctx, beneficiaryID, 0, delta)
	if err != nil {
		if revErr := m.Store.UpdateDay(ctx, previous); revErr != nil {
			log.Printf("[DayManager] attendance revert failed for day %s: %v", dayID, revErr)
		}
		return nil, nil, err
	}

	return day, updated, nil
}

// RemoveDay deletes a program day and walks both counters back.
func (m *DayManager) RemoveDay(ctx context.Context, beneficiaryID BeneficiaryID, dayID DayID) (*Beneficiary, error) {
	day, err := m.Store.GetDay(ctx, beneficiaryID, dayID)
	if err != nil {
		return nil, err
	}
	if day == nil {
		return nil, fmt.Errorf("day %s for beneficiary %s: %w", dayID, beneficiaryID, ErrNotFound)
	}

	if err := m.Store.DeleteDay(ctx, beneficiaryID, dayID); err != nil {
		return nil, err
	}

	completedDelta := 0
	if day.Attended {
		completedDelta = -1
	}

	updated, err := m.Store.AdjustCounters(ctx, beneficiaryID, -1, completedDelta)
	if err != nil {
		if insErr := m.Store.InsertDay(ctx, *day); insErr != nil {
			log.Printf("[DayManager] delete compensation failed for day %s: %v", dayID, insErr)
		}
		return nil, err
	}

	return updated, nil
}
