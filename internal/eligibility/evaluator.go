// Package eligibility decides whether a member may vote. It is pure: callers
// pass the member snapshot and the current has-voted flag, and re-run the
// evaluation at every gate (after info update, before the ballot, and again
// inside the cast-votes transaction).
package eligibility

import "coopvote-backend/internal/models"

// Reasons surfaced to the member on the not-qualified screen.
const (
	ReasonNotMigs            = "must be a Member in Good Standing"
	ReasonInsufficientShares = "share amount must exceed ₱3,000"
)

// Result of an eligibility evaluation. AlreadyVoted is distinct from
// ineligibility: it routes the session to a different terminal state.
type Result struct {
	Eligible     bool
	AlreadyVoted bool
	Reason       string
}

// Evaluate applies the eligibility rules in order; the first failing rule
// wins and is the one reported.
func Evaluate(m *models.Member, hasVoted bool) Result {
	if !m.IsMigs {
		return Result{Reason: ReasonNotMigs}
	}
	if !m.MeetsShareMinimum() {
		return Result{Reason: ReasonInsufficientShares}
	}
	if hasVoted {
		return Result{AlreadyVoted: true}
	}
	return Result{Eligible: true}
}
