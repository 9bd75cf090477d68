package program_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/nutrition-engine/program"
	"github.com/careflow/nutrition-engine/store/memory"
)

func seedBeneficiary(t *testing.T, store *memory.Store, id string, status program.Status, total, completed int) {
	t.Helper()
	require.NoError(t, store.CreateBeneficiary(context.Background(), program.Beneficiary{
		ID:               program.BeneficiaryID(id),
		NationalID:       "nid-" + id,
		Name:             "Beneficiary " + id,
		Type:             program.TypePregnant,
		Status:           status,
		WorkerID:         "worker-1",
		TotalProgramDays: total,
		CompletedDays:    completed,
		AttendanceRate:   program.AttendanceRate(completed, total),
	}))
}

func TestReconcileAll_FlipsFinishedBeneficiaries(t *testing.T) {
	// GIVEN: One finished, one in-progress, one empty-program beneficiary
	// WHEN: The sweep runs
	// THEN: Only the finished one flips to completed

	store := memory.New()
	ctx := context.Background()
	seedBeneficiary(t, store, "done", program.StatusActive, 30, 30)
	seedBeneficiary(t, store, "partial", program.StatusActive, 30, 29)
	seedBeneficiary(t, store, "empty", program.StatusActive, 0, 0)

	res, err := program.ReconcileAll(ctx, store)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Examined)
	assert.Equal(t, 1, res.Flipped)
	assert.Equal(t, 0, res.Failed)

	done, err := store.GetBeneficiary(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, program.StatusCompleted, done.Status)

	partial, err := store.GetBeneficiary(ctx, "partial")
	require.NoError(t, err)
	assert.Equal(t, program.StatusActive, partial.Status)

	empty, err := store.GetBeneficiary(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, program.StatusActive, empty.Status)
}

func TestReconcileAll_SkipsAlreadyCompleted(t *testing.T) {
	// GIVEN: A beneficiary already completed
	// WHEN: The sweep runs twice
	// THEN: The second pass examines nothing and flips nothing

	store := memory.New()
	ctx := context.Background()
	seedBeneficiary(t, store, "done", program.StatusActive, 10, 10)

	first, err := program.ReconcileAll(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Flipped)

	second, err := program.ReconcileAll(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Examined)
	assert.Equal(t, 0, second.Flipped)
}

func TestReconcileAll_FlipsInactiveWhenFinished(t *testing.T) {
	// An inactive beneficiary who has attended every day still completes;
	// completion is derived from counters, not from the active flag.

	store := memory.New()
	ctx := context.Background()
	seedBeneficiary(t, store, "paused", program.StatusInactive, 5, 5)

	res, err := program.ReconcileAll(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Flipped)

	b, err := store.GetBeneficiary(ctx, "paused")
	require.NoError(t, err)
	assert.Equal(t, program.StatusCompleted, b.Status)
}

func TestReconcileAll_CompletedIsTerminal(t *testing.T) {
	// GIVEN: A beneficiary the sweep flipped to completed
	// WHEN: A stale deactivate request writes inactive afterwards
	// THEN: The store declines with Conflict and the status holds

	store := memory.New()
	ctx := context.Background()
	seedBeneficiary(t, store, "done", program.StatusActive, 5, 5)

	_, err := program.ReconcileAll(ctx, store)
	require.NoError(t, err)

	err = store.UpdateStatus(ctx, "done", program.StatusInactive)
	require.Error(t, err)
	assert.ErrorIs(t, err, program.ErrConflict)

	b, err := store.GetBeneficiary(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, program.StatusCompleted, b.Status)
}

func TestReconcileAll_EmptyStore(t *testing.T) {
	store := memory.New()

	res, err := program.ReconcileAll(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, program.SweepResult{}, res)
}
