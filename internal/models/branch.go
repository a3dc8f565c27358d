package models

import "time"

// Branch scopes control numbers and tallies. The ledger locks the branch row
// to serialize ballot submissions within a branch.
type Branch struct {
	BranchID     uint      `gorm:"column:branch_id;primaryKey;autoIncrement" json:"branch_id"`
	BranchNumber string    `gorm:"column:branch_number;not null;uniqueIndex" json:"branch_number"`
	Name         string    `gorm:"column:name" json:"name"`
	IsActive     bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Branch) TableName() string {
	return "branches"
}
