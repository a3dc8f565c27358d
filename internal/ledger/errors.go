package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateVote: the member already has votes in this branch. A normal
	// terminal outcome, not a system fault.
	ErrDuplicateVote = errors.New("member has already voted in this branch")

	// ErrInvalidCandidate: a selected candidate does not belong to its claimed
	// position, is inactive, or appears twice in the ballot.
	ErrInvalidCandidate = errors.New("invalid candidate for position")

	// ErrEmptyBallot: a submission with no selections at all.
	ErrEmptyBallot = errors.New("ballot has no selections")

	// ErrBranchNotFound: the branch row used as the lock anchor is missing.
	ErrBranchNotFound = errors.New("branch not found")
)

// PositionLimitError reports a selection exceeding a position's vacancy
// ceiling. Surfaced to the member so they can correct the ballot.
type PositionLimitError struct {
	PositionID uint
	Title      string
	Limit      int
	Selected   int
}

func (e *PositionLimitError) Error() string {
	return fmt.Sprintf("position %q allows at most %d candidate(s), got %d", e.Title, e.Limit, e.Selected)
}
