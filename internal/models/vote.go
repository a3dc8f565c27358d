package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote is the append-only fact record. One ballot submission produces one row
// per selected candidate, all sharing a branch-scoped control number. The
// composite unique index rejects a second vote for the same candidate by the
// same member in the same branch at the database level, backing up the
// ledger's in-transaction check.
type Vote struct {
	VoteID        uuid.UUID `gorm:"column:vote_id;type:uuid;primaryKey" json:"vote_id"`
	ControlNumber int       `gorm:"column:control_number;not null;index:idx_votes_branch_control" json:"control_number"`
	BranchNumber  string    `gorm:"column:branch_number;not null;index:idx_votes_branch_control;uniqueIndex:idx_votes_member_candidate;index:idx_votes_member_branch" json:"branch_number"`
	MemberCode    string    `gorm:"column:member_code;not null;uniqueIndex:idx_votes_member_candidate;index:idx_votes_member_branch" json:"member_code"`
	CandidateID   uint      `gorm:"column:candidate_id;not null;index;uniqueIndex:idx_votes_member_candidate" json:"candidate_id"`
	OnlineVote    bool      `gorm:"column:online_vote;default:true" json:"online_vote"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (Vote) TableName() string {
	return "votes"
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.VoteID == uuid.Nil {
		v.VoteID = uuid.New()
	}
	return nil
}
