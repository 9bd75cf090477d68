/*
progress.go - Pure progress calculators

PURPOSE:
  Side-effect-free functions deriving attendance rate, remaining days, and
  completion from beneficiary counters. Everything else in the system
  (stores, handlers, the reconciliation sweep) derives these numbers here
  and nowhere else.

COMPLETION POLICY:
  A beneficiary is complete once every enrolled day has been attended:
  TotalProgramDays > 0 && CompletedDays >= TotalProgramDays.

SEE ALSO:
  - reconcile.go: Applies IsComplete to flip status
  - days.go: Recomputes AttendanceRate after every counter mutation
*/
package program

import "math"

// AttendanceRate returns round(completed/total*100) in 0..100.
// A beneficiary with no enrolled days has a rate of 0.
func AttendanceRate(completedDays, totalProgramDays int) int {
	if totalProgramDays <= 0 {
		return 0
	}
	rate := int(math.Round(float64(completedDays) / float64(totalProgramDays) * 100))
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// DaysRemaining returns how many program days are still unattended, never
// negative.
func DaysRemaining(b Beneficiary) int {
	remaining := b.TotalProgramDays - b.CompletedDays
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsComplete reports whether the beneficiary has attended their full
// program. Beneficiaries with no enrolled days are never complete.
func IsComplete(b Beneficiary) bool {
	return b.TotalProgramDays > 0 && b.CompletedDays >= b.TotalProgramDays
}

// ClampCounters restores the counter invariant on a pair of counters:
// total >= 0 and 0 <= completed <= total.
func ClampCounters(totalProgramDays, completedDays int) (total, completed int) {
	if totalProgramDays < 0 {
		totalProgramDays = 0
	}
	if completedDays < 0 {
		completedDays = 0
	}
	if completedDays > totalProgramDays {
		completedDays = totalProgramDays
	}
	return totalProgramDays, completedDays
}
