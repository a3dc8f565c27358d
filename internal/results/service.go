// Package results builds read-only tallies from committed votes. The live
// results view and the reporting exports both consume its output.
package results

import (
	"context"
	"sort"

	"coopvote-backend/internal/models"

	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Filter narrows a tally to one position and/or one branch. Nil fields mean
// "all".
type Filter struct {
	PositionID   *uint
	BranchNumber *string
}

// CandidateTally is one candidate's line in the results.
type CandidateTally struct {
	CandidateID uint   `json:"candidate_id"`
	Name        string `json:"name"`
	Total       int64  `json:"total"`
	Online      int64  `json:"online"`
	Offline     int64  `json:"offline"`
	Rank        int    `json:"rank"`
	Winning     bool   `json:"winning"`
}

// PositionTally groups candidate tallies under their position, ordered the
// way the ballot is shown.
type PositionTally struct {
	PositionID  uint             `json:"position_id"`
	Title       string           `json:"title"`
	VacantCount int              `json:"vacant_count"`
	Priority    int              `json:"priority"`
	Candidates  []CandidateTally `json:"candidates"`
}

type voteCount struct {
	CandidateID uint
	Online      bool
	Count       int64
}

// Tally computes per-candidate totals with the online/offline split, ranks
// candidates within each position descending by total with ties broken by
// ascending candidate id, and marks the winning rows. Candidates with zero
// votes still appear.
func (s *Service) Tally(ctx context.Context, f Filter) ([]PositionTally, error) {
	positionQuery := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("priority asc")
	if f.PositionID != nil {
		positionQuery = positionQuery.Where("position_id = ?", *f.PositionID)
	}
	var positions []models.Position
	if err := positionQuery.Preload("Candidates", "is_active = ?", true).Find(&positions).Error; err != nil {
		return nil, err
	}

	countQuery := s.DB.WithContext(ctx).Model(&models.Vote{}).
		Select("candidate_id, online_vote as online, COUNT(*) as count").
		Group("candidate_id, online_vote")
	if f.BranchNumber != nil {
		countQuery = countQuery.Where("branch_number = ?", *f.BranchNumber)
	}
	var counts []voteCount
	if err := countQuery.Scan(&counts).Error; err != nil {
		return nil, err
	}

	online := make(map[uint]int64)
	offline := make(map[uint]int64)
	for _, c := range counts {
		if c.Online {
			online[c.CandidateID] += c.Count
		} else {
			offline[c.CandidateID] += c.Count
		}
	}

	out := make([]PositionTally, 0, len(positions))
	for _, p := range positions {
		pt := PositionTally{
			PositionID:  p.PositionID,
			Title:       p.Title,
			VacantCount: p.VacantCount,
			Priority:    p.Priority,
			Candidates:  make([]CandidateTally, 0, len(p.Candidates)),
		}
		for i := range p.Candidates {
			c := &p.Candidates[i]
			pt.Candidates = append(pt.Candidates, CandidateTally{
				CandidateID: c.CandidateID,
				Name:        c.FullName(),
				Online:      online[c.CandidateID],
				Offline:     offline[c.CandidateID],
				Total:       online[c.CandidateID] + offline[c.CandidateID],
			})
		}
		sort.Slice(pt.Candidates, func(i, j int) bool {
			if pt.Candidates[i].Total != pt.Candidates[j].Total {
				return pt.Candidates[i].Total > pt.Candidates[j].Total
			}
			return pt.Candidates[i].CandidateID < pt.Candidates[j].CandidateID
		})
		for i := range pt.Candidates {
			pt.Candidates[i].Rank = i + 1
			pt.Candidates[i].Winning = i < p.VacantCount && pt.Candidates[i].Total > 0
		}
		out = append(out, pt)
	}
	return out, nil
}
