package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEvent records every outcome on the cast-vote path (successes and each
// failure kind) with enough context to reconstruct what happened after the
// fact, since committed votes are only ever reported in aggregate.
type AuditEvent struct {
	EventID      uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	Kind         string         `gorm:"column:kind;type:varchar(40);not null;index" json:"kind"`
	MemberCode   string         `gorm:"column:member_code;index" json:"member_code"`
	BranchNumber string         `gorm:"column:branch_number;index" json:"branch_number"`
	Details      datatypes.JSON `gorm:"column:details" json:"details"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
