package models

import "time"

// Position is an elected office. VacantCount is the maximum number of
// distinct candidates one member may select for it.
type Position struct {
	PositionID  uint        `gorm:"column:position_id;primaryKey;autoIncrement" json:"position_id"`
	Title       string      `gorm:"column:title;not null" json:"title"`
	VacantCount int         `gorm:"column:vacant_count;not null;default:1" json:"vacant_count"`
	Priority    int         `gorm:"column:priority;not null;default:0" json:"priority"`
	IsActive    bool        `gorm:"column:is_active;default:true" json:"is_active"`
	Candidates  []Candidate `gorm:"foreignKey:PositionID" json:"candidates,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (Position) TableName() string {
	return "positions"
}
