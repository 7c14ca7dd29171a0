// Package reimbursement implements the reimbursement ledger: reimbursement
// requests, fund transactions, and the two-level status rollup.
package reimbursement

import "github.com/fso-systems/travelreq/internal/models"

// RollupSpec parametrizes the precedence rollup. Both rollup levels share one
// shape: partial dominates, uniform-full wins only when every member is full,
// mixed full-plus-other collapses to partial, a uniform not-yet-acted-on
// value has its own result, and the empty multiset is its own terminal. Using
// one function at both call sites keeps the precedence order from drifting.
type RollupSpec struct {
	Partial       string // result when any member is partially reimbursed
	Full          string // result when every member is fully reimbursed
	Uniform       string // the not-yet-acted-on member value
	UniformResult string // result when every member equals Uniform
	Empty         string // result for the empty multiset
	Default       string // result otherwise
}

// Rollup derives an aggregate status from the multiset of child statuses.
func Rollup(statuses []string, spec RollupSpec) string {
	if len(statuses) == 0 {
		return spec.Empty
	}

	containsPartial := false
	containsFull := false
	allFull := true
	allUniform := true
	for _, s := range statuses {
		switch s {
		case models.FundPartiallyReimbursed:
			containsPartial = true
		case models.FundFullyReimbursed:
			containsFull = true
		}
		if s != models.FundFullyReimbursed {
			allFull = false
		}
		if s != spec.Uniform {
			allUniform = false
		}
	}

	switch {
	case containsPartial:
		return spec.Partial
	case allFull:
		return spec.Full
	case containsFull:
		return spec.Partial
	case allUniform:
		return spec.UniformResult
	default:
		return spec.Default
	}
}

// fundRollup derives a reimbursement request's status from its fund
// transactions' statuses.
var fundRollup = RollupSpec{
	Partial:       models.ReimbPartiallyReimbursed,
	Full:          models.ReimbFullyReimbursed,
	Uniform:       models.FundCancelled,
	UniformResult: models.ReimbSubmitted,
	Empty:         models.ReimbSubmitted,
	Default:       models.ReimbPending,
}

// requestRollup derives an approval request's reimbursement status from its
// reimbursement requests' statuses.
var requestRollup = RollupSpec{
	Partial:       models.ReimbPartiallyReimbursed,
	Full:          models.ReimbFullyReimbursed,
	Uniform:       models.ReimbSubmitted,
	UniformResult: models.ReimbSubmitted,
	Empty:         models.ReimbNotSubmitted,
	Default:       models.ReimbPending,
}
