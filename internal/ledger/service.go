// Package ledger is the transactional core: it appends vote rows, assigns
// branch-scoped control numbers, and enforces the duplicate-vote and
// vacancy-ceiling invariants atomically.
package ledger

import (
	"context"
	"errors"
	"sort"

	"coopvote-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB *gorm.DB
}

// Selections maps a position id to the candidate ids chosen for it.
type Selections map[uint][]uint

// CastVotesInput is one ballot submission. Offline is set only by the
// in-person recording path; the web flow always submits online votes.
type CastVotesInput struct {
	MemberCode   string
	BranchNumber string
	Selections   Selections
	Offline      bool
}

// CastVotes commits one ballot in a single transaction:
//
//  1. Lock the branch row FOR UPDATE. Every submission for the branch goes
//     through this lock, so the already-voted check, the control-number read,
//     and the insert cannot interleave with a concurrent submission.
//  2. Re-check that no vote rows exist for (member, branch).
//  3. Validate every selection against its position's vacancy ceiling and
//     candidate membership.
//  4. Assign MAX(control_number)+1 for the branch and batch-insert one row
//     per selected candidate.
//
// Any failure rolls back the whole transaction; no partial votes persist.
func (s *Service) CastVotes(ctx context.Context, in CastVotesInput) (int, error) {
	if len(in.Selections) == 0 {
		return 0, ErrEmptyBallot
	}

	var controlNumber int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var branch models.Branch
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("branch_number = ?", in.BranchNumber).
			First(&branch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBranchNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.Vote{}).
			Where("member_code = ? AND branch_number = ?", in.MemberCode, in.BranchNumber).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateVote
		}

		candidateIDs, err := validateSelections(tx, in.Selections)
		if err != nil {
			return err
		}

		var maxControl int
		if err := tx.Model(&models.Vote{}).
			Where("branch_number = ?", in.BranchNumber).
			Select("COALESCE(MAX(control_number), 0)").
			Scan(&maxControl).Error; err != nil {
			return err
		}
		controlNumber = maxControl + 1

		rows := make([]models.Vote, 0, len(candidateIDs))
		for _, candidateID := range candidateIDs {
			rows = append(rows, models.Vote{
				ControlNumber: controlNumber,
				BranchNumber:  in.BranchNumber,
				MemberCode:    in.MemberCode,
				CandidateID:   candidateID,
				OnlineVote:    !in.Offline,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, err
	}
	return controlNumber, nil
}

// validateSelections checks each position's ceiling and that every candidate
// belongs to the position it was claimed for. Returns the flattened candidate
// ids in a deterministic order.
func validateSelections(tx *gorm.DB, selections Selections) ([]uint, error) {
	positionIDs := make([]uint, 0, len(selections))
	for positionID := range selections {
		positionIDs = append(positionIDs, positionID)
	}
	sort.Slice(positionIDs, func(i, j int) bool { return positionIDs[i] < positionIDs[j] })

	flattened := make([]uint, 0)
	seen := make(map[uint]bool)
	for _, positionID := range positionIDs {
		candidateIDs := selections[positionID]
		if len(candidateIDs) == 0 {
			continue
		}

		var position models.Position
		if err := tx.Where("position_id = ?", positionID).First(&position).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidCandidate
			}
			return nil, err
		}
		if len(candidateIDs) > position.VacantCount {
			return nil, &PositionLimitError{
				PositionID: position.PositionID,
				Title:      position.Title,
				Limit:      position.VacantCount,
				Selected:   len(candidateIDs),
			}
		}

		for _, candidateID := range candidateIDs {
			if seen[candidateID] {
				return nil, ErrInvalidCandidate
			}
			seen[candidateID] = true
		}

		var matching int64
		if err := tx.Model(&models.Candidate{}).
			Where("candidate_id IN ? AND position_id = ? AND is_active = ?", candidateIDs, positionID, true).
			Count(&matching).Error; err != nil {
			return nil, err
		}
		if matching != int64(len(candidateIDs)) {
			return nil, ErrInvalidCandidate
		}

		sorted := append([]uint(nil), candidateIDs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		flattened = append(flattened, sorted...)
	}
	if len(flattened) == 0 {
		return nil, ErrEmptyBallot
	}
	return flattened, nil
}

// HasVoted reports whether any vote row exists for the member in the branch.
// The flow controller calls this at every gate; it reads the same table the
// write path locks, so it never disagrees with CastVotes.
func (s *Service) HasVoted(ctx context.Context, memberCode, branchNumber string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Vote{}).
		Where("member_code = ? AND branch_number = ?", memberCode, branchNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ControlNumberFor returns the control number of the member's committed
// ballot, or 0 if none exists. Used by the confirmation and receipt views.
func (s *Service) ControlNumberFor(ctx context.Context, memberCode, branchNumber string) (int, error) {
	var votes []models.Vote
	err := s.DB.WithContext(ctx).
		Where("member_code = ? AND branch_number = ?", memberCode, branchNumber).
		Limit(1).Find(&votes).Error
	if err != nil {
		return 0, err
	}
	if len(votes) == 0 {
		return 0, nil
	}
	return votes[0].ControlNumber, nil
}

// VotesFor returns the member's committed vote rows, for the receipt and
// confirmation views.
func (s *Service) VotesFor(ctx context.Context, memberCode, branchNumber string) ([]models.Vote, error) {
	var votes []models.Vote
	err := s.DB.WithContext(ctx).
		Where("member_code = ? AND branch_number = ?", memberCode, branchNumber).
		Order("candidate_id").
		Find(&votes).Error
	return votes, err
}
