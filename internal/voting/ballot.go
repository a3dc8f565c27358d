package voting

import (
	"context"

	"coopvote-backend/internal/models"

	"gorm.io/gorm"
)

// BallotService loads the ballot presented to a verified member and groups
// committed votes for the confirmation and receipt views.
type BallotService struct {
	DB *gorm.DB
}

// LoadBallot returns the active positions ordered by priority, each with its
// active candidates. An empty slice is the "no ballot available" outcome.
func (b *BallotService) LoadBallot(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	err := b.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority asc").
		Preload("Candidates", "is_active = ?", true).
		Find(&positions).Error
	return positions, err
}

// ActiveBranches returns the branches a voter may start from.
func (b *BallotService) ActiveBranches(ctx context.Context) ([]models.Branch, error) {
	var branches []models.Branch
	err := b.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("branch_number asc").
		Find(&branches).Error
	return branches, err
}

// FindActiveBranch returns the branch by id if it is active.
func (b *BallotService) FindActiveBranch(ctx context.Context, branchID uint) (*models.Branch, error) {
	var branch models.Branch
	err := b.DB.WithContext(ctx).
		Where("branch_id = ? AND is_active = ?", branchID, true).
		First(&branch).Error
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// PositionVotes is one position's committed selections, for receipts.
type PositionVotes struct {
	Title      string   `json:"title"`
	Candidates []string `json:"candidates"`
}

// GroupedVotes returns the member's committed votes grouped by position in
// ballot order.
func (b *BallotService) GroupedVotes(ctx context.Context, memberCode, branchNumber string) ([]PositionVotes, error) {
	type row struct {
		Title      string
		Priority   int
		FirstName  string
		MiddleName string
		LastName   string
	}
	var rows []row
	err := b.DB.WithContext(ctx).Model(&models.Vote{}).
		Select("positions.title, positions.priority, candidates.first_name, candidates.middle_name, candidates.last_name").
		Joins("JOIN candidates ON candidates.candidate_id = votes.candidate_id").
		Joins("JOIN positions ON positions.position_id = candidates.position_id").
		Where("votes.member_code = ? AND votes.branch_number = ?", memberCode, branchNumber).
		Order("positions.priority asc, candidates.last_name asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	grouped := make([]PositionVotes, 0)
	for _, r := range rows {
		name := r.FirstName
		if r.MiddleName != "" {
			name += " " + r.MiddleName
		}
		name += " " + r.LastName
		if len(grouped) == 0 || grouped[len(grouped)-1].Title != r.Title {
			grouped = append(grouped, PositionVotes{Title: r.Title})
		}
		grouped[len(grouped)-1].Candidates = append(grouped[len(grouped)-1].Candidates, name)
	}
	return grouped, nil
}
