/*
reconcile.go - Status reconciliation core

PURPOSE:
  Derives beneficiary completion status from current counters and persists
  any flips. Both the inline per-request check and the daily scheduled
  sweep call ReconcileAll; the routine is a pure function of current state,
  so overlapping or repeated sweeps converge to the same result.

FAILURE ISOLATION:
  A persistence failure for one beneficiary is logged and does not abort
  the rest of the sweep.

SEE ALSO:
  - progress.go: IsComplete policy
  - api/scheduler.go: the timed trigger
*/
package program

import (
	"context"
	"log"
)

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Examined int
	Flipped  int
	Failed   int
}

// ReconcileAll sweeps every beneficiary whose status is not already
// completed, applies the completion policy, and persists any that flip.
// Only the sweep itself can fail hard (listing the beneficiaries);
// per-beneficiary failures are counted and logged.
func ReconcileAll(ctx context.Context, store BeneficiaryStore) (SweepResult, error) {
	var res SweepResult

	beneficiaries, err := store.ListBeneficiaries(ctx)
	if err != nil {
		return res, err
	}

	for _, b := range beneficiaries {
		if b.Status == StatusCompleted {
			continue
		}
		res.Examined++

		if !IsComplete(b) {
			continue
		}

		if err := store.UpdateStatus(ctx, b.ID, StatusCompleted); err != nil {
			if IsConflict(err) {
				// An overlapping sweep already flipped this one.
				continue
			}
			res.Failed++
			log.Printf("[Reconcile] failed to complete beneficiary %s: %v", b.ID, err)
			continue
		}
		res.Flipped++
	}

	return res, nil
}
