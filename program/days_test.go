package program_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/nutrition-engine/program"
	"github.com/careflow/nutrition-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestManager(t *testing.T) (*program.DayManager, *memory.Store) {
	t.Helper()
	store := memory.New()
	return program.NewDayManager(store), store
}

func enroll(t *testing.T, store *memory.Store, id string) program.Beneficiary {
	t.Helper()
	b := program.Beneficiary{
		ID:         program.BeneficiaryID(id),
		NationalID: "nid-" + id,
		Name:       "Beneficiary " + id,
		Type:       program.TypeChild,
		Status:     program.StatusActive,
		WorkerID:   "worker-1",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateBeneficiary(context.Background(), b))
	return b
}

func addDay(t *testing.T, m *program.DayManager, beneficiaryID string, dayNumber int) program.ProgramDay {
	t.Helper()
	day, _, err := m.AddDay(context.Background(), program.AddDayInput{
		BeneficiaryID: program.BeneficiaryID(beneficiaryID),
		DayNumber:     dayNumber,
		Date:          time.Date(2026, time.March, dayNumber, 0, 0, 0, 0, time.UTC),
		ActivityType:  program.ActivityAttendance,
	})
	require.NoError(t, err)
	return *day
}

// =============================================================================
// ADD DAY
// =============================================================================

func TestAddDay_RaisesTotalOnly(t *testing.T) {
	// GIVEN: A beneficiary with no enrolled days
	// WHEN: A program day is added
	// THEN: totalProgramDays rises, completedDays stays, rate stays at 0

	m, store := newTestManager(t)
	enroll(t, store, "b-1")

	_, updated, err := m.AddDay(context.Background(), program.AddDayInput{
		BeneficiaryID: "b-1",
		DayNumber:     1,
		Date:          time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		ActivityType:  program.ActivityCheckIn,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.TotalProgramDays)
	assert.Equal(t, 0, updated.CompletedDays)
	assert.Equal(t, 0, updated.AttendanceRate)
}

func TestAddDay_DuplicateDayNumber_Rejected(t *testing.T) {
	// GIVEN: Day 5 already enrolled
	// WHEN: Enrolling day 5 again
	// THEN: Rejected with DuplicateDayError; counters are not double-counted

	m, store := newTestManager(t)
	enroll(t, store, "b-1")
	addDay(t, m, "b-1", 5)

	_, _, err := m.AddDay(context.Background(), program.AddDayInput{
		BeneficiaryID: "b-1",
		DayNumber:     5,
		Date:          time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
		ActivityType:  program.ActivityAttendance,
	})
	require.Error(t, err)

	var dupErr *program.DuplicateDayError
	assert.ErrorAs(t, err, &dupErr)
	assert.Equal(t, 5, dupErr.DayNumber)
	assert.ErrorIs(t, err, program.ErrConflict)

	b, err := store.GetBeneficiary(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.TotalProgramDays)
}

func TestAddDay_UnknownBeneficiary(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.AddDay(context.Background(), program.AddDayInput{
		BeneficiaryID: "ghost",
		DayNumber:     1,
		Date:          time.Now(),
		ActivityType:  program.ActivityAttendance,
	})
	assert.ErrorIs(t, err, program.ErrNotFound)
}

func TestAddDay_InvalidInput(t *testing.T) {
	m, store := newTestManager(t)
	enroll(t, store, "b-1")

	tests := []struct {
		name string
		in   program.AddDayInput
	}{
		{"missing beneficiary", program.AddDayInput{DayNumber: 1, ActivityType: program.ActivityCheckIn}},
		{"day number below 1", program.AddDayInput{BeneficiaryID: "b-1", DayNumber: 0, ActivityType: program.ActivityCheckIn}},
		{"unknown activity type", program.AddDayInput{BeneficiaryID: "b-1", DayNumber: 1, ActivityType: "party"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.AddDay(context.Background(), tt.in)
			assert.ErrorIs(t, err, program.ErrInvalidArgument)
		})
	}
}

// =============================================================================
// SET ATTENDANCE
// =============================================================================

func TestSetAttendance_MovesCountersOnTransitionOnly(t *testing.T) {
	// GIVEN: One enrolled, unattended day
	// WHEN: Attendance flips false -> true -> true -> false
	// THEN: completedDays moves only on actual transitions

	m, store := newTestManager(t)
	enroll(t, store, "b-1")
	day := addDay(t, m, "b-1", 1)
	ctx := context.Background()

	// false -> true
	_, updated, err := m.SetAttendance(ctx, "b-1", day.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CompletedDays)
	assert.Equal(t, 100, updated.AttendanceRate)

	// true -> true: counters hold
	_, updated, err = m.SetAttendance(ctx, "b-1", day.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CompletedDays)

	// true -> false
	_, updated, err = m.SetAttendance(ctx, "b-1", day.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CompletedDays)
	assert.Equal(t, 0, updated.AttendanceRate)

	b, err := store.GetBeneficiary(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.TotalProgramDays)
}

func TestSetAttendance_FiveDayScenario(t *testing.T) {
	// GIVEN: A five-day program
	// WHEN: Three days are attended
	// THEN: Rate is round(3/5*100) = 60 and remaining is 2

	m, store := newTestManager(t)
	enroll(t, store, "b-1")
	ctx := context.Background()

	days := make([]program.ProgramDay, 5)
	for i := range days {
		days[i] = addDay(t, m, "b-1", i+1)
	}

	for i := 0; i < 3; i++ {
		_, _, err := m.SetAttendance(ctx, "b-1", days[i].ID, true, nil)
		require.NoError(t, err)
	}

	b, err := store.GetBeneficiary(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 5, b.TotalProgramDays)
	assert.Equal(t, 3, b.CompletedDays)
	assert.Equal(t, 60, b.AttendanceRate)
	assert.Equal(t, 2, program.DaysRemaining(*b))
	assert.False(t, program.IsComplete(*b))
}

func TestSetAttendance_UpdatesNotes(t *testing.T) {
	m, store := newTestManager(t)
	enroll(t, store, "b-1")
	day := addDay(t, m, "b-1", 1)

	notes := "  follow-up on weight gain  "
	updatedDay, _, err := m.SetAttendance(context.Background(), "b-1", day.ID, true, &notes)
	require.NoError(t, err)
	assert.Equal(t, "follow-up on weight gain", updatedDay.Notes)
	assert.True(t, updatedDay.Attended)
}

func TestSetAttendance_DayNotFound(t *testing.T) {
	m, store := newTestManager(t)
	enroll(t, store, "b-1")

	_, _, err := m.SetAttendance(context.Background(), "b-1", "no-such-day", true, nil)
	assert.ErrorIs(t, err, program.ErrNotFound)
}

// =============================================================================
// REMOVE DAY
// =============================================================================

func TestRemoveDay_WalksCountersBack(t *testing.T) {
	// GIVEN: Two enrolled days, one attended
	// WHEN: The attended day is removed
	// THEN: Both counters drop and the rate is recomputed

	m, store := newTestManager(t)
	enroll(t, store, "b-1")
	ctx := context.Background()

	attended := addDay(t, m, "b-1", 1)
	addDay(t, m, "b-1", 2)
	_, _, err := m.SetAttendance(ctx, "b-1", attended.ID, true, nil)
	require.NoError(t, err)

	updated, err := m.RemoveDay(ctx, "b-1", attended.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, updated.TotalProgramDays)
	assert.Equal(t, 0, updated.CompletedDays)
	assert.Equal(t, 0, updated.AttendanceRate)

	day, err := store.GetDay(ctx, "b-1", attended.ID)
	require.NoError(t, err)
	assert.Nil(t, day, "removed day should be gone")
}

func TestRemoveDay_UnattendedDay_LeavesCompleted(t *testing.T) {
	m, store := newTestManager(t)
	enroll(t, store, "b-1")
	ctx := context.Background()

	attended := addDay(t, m, "b-1", 1)
	unattended := addDay(t, m, "b-1", 2)
	_, _, err := m.SetAttendance(ctx, "b-1", attended.ID, true, nil)
	require.NoError(t, err)

	updated, err := m.RemoveDay(ctx, "b-1", unattended.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, updated.TotalProgramDays)
	assert.Equal(t, 1, updated.CompletedDays)
	assert.Equal(t, 100, updated.AttendanceRate)
}

func TestAddThenRemove_RoundTrips(t *testing.T) {
	// GIVEN: A beneficiary with an established program
	// WHEN: A day is added and immediately removed
	// THEN: Counters are exactly where they started

	m, store := newTestManager(t)
	enroll(t, store, "b-1")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		addDay(t, m, "b-1", i)
	}
	before, err := store.GetBeneficiary(ctx, "b-1")
	require.NoError(t, err)

	day := addDay(t, m, "b-1", 4)
	_, err = m.RemoveDay(ctx, "b-1", day.ID)
	require.NoError(t, err)

	after, err := store.GetBeneficiary(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, before.TotalProgramDays, after.TotalProgramDays)
	assert.Equal(t, before.CompletedDays, after.CompletedDays)
	assert.Equal(t, before.AttendanceRate, after.AttendanceRate)
}
