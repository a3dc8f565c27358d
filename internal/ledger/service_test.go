package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"coopvote-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedgerTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	// One connection so every goroutine sees the same in-memory database and
	// writes serialize the way the branch-row lock does on Postgres.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Branch{}, &models.Position{}, &models.Candidate{}, &models.Vote{},
	))
	return &Service{DB: db}
}

func seedBallot(t *testing.T, db *gorm.DB) (chair models.Position, directors models.Position, candidates []models.Candidate) {
	require.NoError(t, db.Create(&models.Branch{BranchNumber: "011", Name: "Main", IsActive: true}).Error)
	chair = models.Position{Title: "Chairperson", VacantCount: 1, Priority: 1, IsActive: true}
	directors = models.Position{Title: "Board of Directors", VacantCount: 3, Priority: 2, IsActive: true}
	require.NoError(t, db.Create(&chair).Error)
	require.NoError(t, db.Create(&directors).Error)
	candidates = []models.Candidate{
		{PositionID: chair.PositionID, FirstName: "Ana", LastName: "Reyes", IsActive: true},
		{PositionID: chair.PositionID, FirstName: "Ben", LastName: "Cruz", IsActive: true},
		{PositionID: directors.PositionID, FirstName: "Carla", LastName: "Lim", IsActive: true},
		{PositionID: directors.PositionID, FirstName: "Dan", LastName: "Tan", IsActive: true},
		{PositionID: directors.PositionID, FirstName: "Eva", LastName: "Go", IsActive: true},
	}
	require.NoError(t, db.Create(&candidates).Error)
	return chair, directors, candidates
}

func countVotes(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&models.Vote{}).Count(&n).Error)
	return n
}

func TestCastVotes_FirstBallotGetsControlNumberOne(t *testing.T) {
	s := setupLedgerTest(t)
	chair, directors, cands := seedBallot(t, s.DB)

	cn, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode:   "OICABCD-011-000123",
		BranchNumber: "011",
		Selections: Selections{
			chair.PositionID:     {cands[0].CandidateID},
			directors.PositionID: {cands[2].CandidateID, cands[3].CandidateID},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cn)
	assert.EqualValues(t, 3, countVotes(t, s.DB))

	// All rows of the ballot share the control number and are online.
	var rows []models.Vote
	require.NoError(t, s.DB.Find(&rows).Error)
	for _, row := range rows {
		assert.Equal(t, 1, row.ControlNumber)
		assert.True(t, row.OnlineVote)
	}
}

func TestCastVotes_SecondMemberGetsNextControlNumber(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)
	ctx := context.Background()

	cn1, err := s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[0].CandidateID}},
	})
	require.NoError(t, err)
	cn2, err := s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-2", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[1].CandidateID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cn1)
	assert.Equal(t, 2, cn2)
}

func TestCastVotes_ControlNumbersScopedPerBranch(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)
	require.NoError(t, s.DB.Create(&models.Branch{BranchNumber: "022", IsActive: true}).Error)
	ctx := context.Background()

	cn1, err := s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[0].CandidateID}},
	})
	require.NoError(t, err)
	cn2, err := s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-2", BranchNumber: "022",
		Selections: Selections{chair.PositionID: {cands[1].CandidateID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cn1)
	assert.Equal(t, 1, cn2)
}

func TestCastVotes_DuplicateVoteRejected(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)
	ctx := context.Background()

	_, err := s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[0].CandidateID}},
	})
	require.NoError(t, err)

	before := countVotes(t, s.DB)
	_, err = s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[1].CandidateID}},
	})
	assert.ErrorIs(t, err, ErrDuplicateVote)
	assert.Equal(t, before, countVotes(t, s.DB))
}

func TestCastVotes_PositionLimitExceeded(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)

	_, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[0].CandidateID, cands[1].CandidateID}},
	})
	var limitErr *PositionLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "Chairperson", limitErr.Title)
	assert.Equal(t, 1, limitErr.Limit)
	assert.Equal(t, 2, limitErr.Selected)
	assert.EqualValues(t, 0, countVotes(t, s.DB))
}

func TestCastVotes_CandidateFromWrongPositionRejectsWholeBallot(t *testing.T) {
	s := setupLedgerTest(t)
	chair, directors, cands := seedBallot(t, s.DB)

	// cands[2] belongs to the directors position, claimed under chair.
	_, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{
			chair.PositionID:     {cands[2].CandidateID},
			directors.PositionID: {cands[3].CandidateID},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidCandidate)
	assert.EqualValues(t, 0, countVotes(t, s.DB))
}

func TestCastVotes_UnknownPositionRejected(t *testing.T) {
	s := setupLedgerTest(t)
	_, _, cands := seedBallot(t, s.DB)

	_, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{9999: {cands[0].CandidateID}},
	})
	assert.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestCastVotes_DuplicateCandidateInBallotRejected(t *testing.T) {
	s := setupLedgerTest(t)
	_, directors, cands := seedBallot(t, s.DB)

	_, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{directors.PositionID: {cands[2].CandidateID, cands[2].CandidateID}},
	})
	assert.ErrorIs(t, err, ErrInvalidCandidate)
	assert.EqualValues(t, 0, countVotes(t, s.DB))
}

func TestCastVotes_EmptyBallotRejected(t *testing.T) {
	s := setupLedgerTest(t)
	seedBallot(t, s.DB)

	_, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011", Selections: Selections{},
	})
	assert.ErrorIs(t, err, ErrEmptyBallot)

	_, err = s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{1: {}},
	})
	assert.ErrorIs(t, err, ErrEmptyBallot)
}

func TestCastVotes_UnknownBranchRejected(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)

	_, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "099",
		Selections: Selections{chair.PositionID: {cands[0].CandidateID}},
	})
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestCastVotes_OfflinePathMarksRows(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)

	_, err := s.CastVotes(context.Background(), CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[0].CandidateID}},
		Offline:    true,
	})
	require.NoError(t, err)
	var row models.Vote
	require.NoError(t, s.DB.First(&row).Error)
	assert.False(t, row.OnlineVote)
}

func TestCastVotes_ConcurrentMembersGetDistinctControlNumbers(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)

	const n = 10
	results := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.CastVotes(context.Background(), CastVotesInput{
				MemberCode:   fmt.Sprintf("M-%03d", i),
				BranchNumber: "011",
				Selections:   Selections{chair.PositionID: {cands[0].CandidateID}},
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[results[i]], "control number %d assigned twice", results[i])
		seen[results[i]] = true
	}
	// Gap-free 1..n.
	for cn := 1; cn <= n; cn++ {
		assert.True(t, seen[cn], "control number %d missing", cn)
	}
}

func TestCastVotes_ConcurrentSameMemberOnlyOneSucceeds(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CastVotes(context.Background(), CastVotesInput{
				MemberCode:   "M-RACE",
				BranchNumber: "011",
				Selections:   Selections{chair.PositionID: {cands[0].CandidateID}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := 0; i < n; i++ {
		if errs[i] == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, errs[i], ErrDuplicateVote)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 1, countVotes(t, s.DB))
}

func TestHasVoted(t *testing.T) {
	s := setupLedgerTest(t)
	chair, _, cands := seedBallot(t, s.DB)
	ctx := context.Background()

	voted, err := s.HasVoted(ctx, "M-1", "011")
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{chair.PositionID: {cands[0].CandidateID}},
	})
	require.NoError(t, err)

	voted, err = s.HasVoted(ctx, "M-1", "011")
	require.NoError(t, err)
	assert.True(t, voted)

	// Same member, different branch: not voted.
	voted, err = s.HasVoted(ctx, "M-1", "022")
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestControlNumberForAndVotesFor(t *testing.T) {
	s := setupLedgerTest(t)
	_, directors, cands := seedBallot(t, s.DB)
	ctx := context.Background()

	cn, err := s.ControlNumberFor(ctx, "M-1", "011")
	require.NoError(t, err)
	assert.Equal(t, 0, cn)

	_, err = s.CastVotes(ctx, CastVotesInput{
		MemberCode: "M-1", BranchNumber: "011",
		Selections: Selections{directors.PositionID: {cands[2].CandidateID, cands[3].CandidateID}},
	})
	require.NoError(t, err)

	cn, err = s.ControlNumberFor(ctx, "M-1", "011")
	require.NoError(t, err)
	assert.Equal(t, 1, cn)

	votes, err := s.VotesFor(ctx, "M-1", "011")
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, cands[2].CandidateID, votes[0].CandidateID)
	assert.Equal(t, cands[3].CandidateID, votes[1].CandidateID)
}
