package results

import (
	"context"
	"testing"

	"coopvote-backend/internal/ledger"
	"coopvote-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupResultsTest(t *testing.T) (*Service, *ledger.Service, models.Position, []models.Candidate) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Branch{}, &models.Position{}, &models.Candidate{}, &models.Vote{},
	))
	require.NoError(t, db.Create(&models.Branch{BranchNumber: "011", IsActive: true}).Error)
	require.NoError(t, db.Create(&models.Branch{BranchNumber: "022", IsActive: true}).Error)
	pos := models.Position{Title: "Chairperson", VacantCount: 1, Priority: 1, IsActive: true}
	require.NoError(t, db.Create(&pos).Error)
	cands := []models.Candidate{
		{PositionID: pos.PositionID, FirstName: "Ana", LastName: "Reyes", IsActive: true},
		{PositionID: pos.PositionID, FirstName: "Ben", LastName: "Cruz", IsActive: true},
		{PositionID: pos.PositionID, FirstName: "Carla", LastName: "Lim", IsActive: true},
	}
	require.NoError(t, db.Create(&cands).Error)
	return &Service{DB: db}, &ledger.Service{DB: db}, pos, cands
}

func cast(t *testing.T, l *ledger.Service, member, branch string, pos uint, cand uint, offline bool) {
	_, err := l.CastVotes(context.Background(), ledger.CastVotesInput{
		MemberCode:   member,
		BranchNumber: branch,
		Selections:   ledger.Selections{pos: {cand}},
		Offline:      offline,
	})
	require.NoError(t, err)
}

func TestTally_CountsAndRanks(t *testing.T) {
	s, l, pos, cands := setupResultsTest(t)

	cast(t, l, "M-1", "011", pos.PositionID, cands[0].CandidateID, false)
	cast(t, l, "M-2", "011", pos.PositionID, cands[0].CandidateID, true)
	cast(t, l, "M-3", "011", pos.PositionID, cands[1].CandidateID, false)

	tallies, err := s.Tally(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, tallies, 1)
	rows := tallies[0].Candidates
	require.Len(t, rows, 3)

	assert.Equal(t, cands[0].CandidateID, rows[0].CandidateID)
	assert.EqualValues(t, 2, rows[0].Total)
	assert.EqualValues(t, 1, rows[0].Online)
	assert.EqualValues(t, 1, rows[0].Offline)
	assert.Equal(t, 1, rows[0].Rank)
	assert.True(t, rows[0].Winning)

	assert.Equal(t, cands[1].CandidateID, rows[1].CandidateID)
	assert.EqualValues(t, 1, rows[1].Total)
	assert.Equal(t, 2, rows[1].Rank)
	assert.False(t, rows[1].Winning)

	// Zero-vote candidate still appears.
	assert.Equal(t, cands[2].CandidateID, rows[2].CandidateID)
	assert.EqualValues(t, 0, rows[2].Total)
	assert.False(t, rows[2].Winning)
}

func TestTally_TieBrokenByCandidateID(t *testing.T) {
	s, l, pos, cands := setupResultsTest(t)

	cast(t, l, "M-1", "011", pos.PositionID, cands[1].CandidateID, false)
	cast(t, l, "M-2", "011", pos.PositionID, cands[0].CandidateID, false)

	tallies, err := s.Tally(context.Background(), Filter{})
	require.NoError(t, err)
	rows := tallies[0].Candidates
	assert.Equal(t, cands[0].CandidateID, rows[0].CandidateID)
	assert.Equal(t, cands[1].CandidateID, rows[1].CandidateID)
}

func TestTally_NoVotesMeansNoWinner(t *testing.T) {
	s, _, _, _ := setupResultsTest(t)

	tallies, err := s.Tally(context.Background(), Filter{})
	require.NoError(t, err)
	for _, row := range tallies[0].Candidates {
		assert.False(t, row.Winning)
	}
}

func TestTally_BranchFilter(t *testing.T) {
	s, l, pos, cands := setupResultsTest(t)

	cast(t, l, "M-1", "011", pos.PositionID, cands[0].CandidateID, false)
	cast(t, l, "M-2", "022", pos.PositionID, cands[0].CandidateID, false)

	branch := "011"
	tallies, err := s.Tally(context.Background(), Filter{BranchNumber: &branch})
	require.NoError(t, err)
	assert.EqualValues(t, 1, tallies[0].Candidates[0].Total)
}

func TestTally_PositionFilterExcludesOthers(t *testing.T) {
	s, _, pos, _ := setupResultsTest(t)
	other := models.Position{Title: "Treasurer", VacantCount: 1, Priority: 2, IsActive: true}
	require.NoError(t, s.DB.Create(&other).Error)

	tallies, err := s.Tally(context.Background(), Filter{PositionID: &pos.PositionID})
	require.NoError(t, err)
	require.Len(t, tallies, 1)
	assert.Equal(t, pos.PositionID, tallies[0].PositionID)
}

func TestTally_InactiveCandidateHidden(t *testing.T) {
	s, _, _, cands := setupResultsTest(t)
	require.NoError(t, s.DB.Model(&models.Candidate{}).
		Where("candidate_id = ?", cands[2].CandidateID).
		Update("is_active", false).Error)

	tallies, err := s.Tally(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, tallies[0].Candidates, 2)
}
