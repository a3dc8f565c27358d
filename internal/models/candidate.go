package models

import "time"

// Candidate belongs to exactly one Position.
type Candidate struct {
	CandidateID uint      `gorm:"column:candidate_id;primaryKey;autoIncrement" json:"candidate_id"`
	PositionID  uint      `gorm:"column:position_id;not null;index" json:"position_id"`
	FirstName   string    `gorm:"column:first_name;not null" json:"first_name"`
	LastName    string    `gorm:"column:last_name;not null" json:"last_name"`
	MiddleName  string    `gorm:"column:middle_name" json:"middle_name"`
	IsActive    bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Candidate) TableName() string {
	return "candidates"
}

func (c *Candidate) FullName() string {
	name := c.FirstName
	if c.MiddleName != "" {
		name += " " + c.MiddleName
	}
	return name + " " + c.LastName
}
