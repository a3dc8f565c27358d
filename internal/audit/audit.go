// Package audit appends one event row per cast-vote-path outcome and mirrors
// it to the structured log. Votes are anonymous in aggregate reporting, so
// this trail is the only way to reconstruct what happened for one member.
package audit

import (
	"context"
	"encoding/json"

	"coopvote-backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event kinds written by the flow controller.
const (
	KindVoteCast           = "VOTE_CAST"
	KindDuplicateVote      = "DUPLICATE_VOTE"
	KindPositionLimit      = "POSITION_LIMIT_EXCEEDED"
	KindInvalidCandidate   = "INVALID_CANDIDATE"
	KindNotQualified       = "NOT_QUALIFIED"
	KindVerificationFailed = "VERIFICATION_FAILED"
	KindVerified           = "VERIFIED"
	KindTransientFailure   = "TRANSIENT_FAILURE"
	KindSessionExpired     = "SESSION_EXPIRED"
	KindReceiptDownloaded  = "RECEIPT_DOWNLOADED"
)

type Recorder struct {
	DB *gorm.DB
}

// Record writes the event and logs it. Persistence errors are logged, not
// returned: an audit failure must never abort the member's flow.
func (r *Recorder) Record(ctx context.Context, kind, memberCode, branchNumber string, details map[string]interface{}) {
	var payload datatypes.JSON
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = datatypes.JSON(b)
		}
	}
	event := models.AuditEvent{
		Kind:         kind,
		MemberCode:   memberCode,
		BranchNumber: branchNumber,
		Details:      payload,
	}
	if r.DB != nil {
		if err := r.DB.WithContext(ctx).Create(&event).Error; err != nil {
			log.Error().Err(err).Str("kind", kind).Msg("audit event not persisted")
		}
	}
	log.Info().
		Str("kind", kind).
		Str("member_code", memberCode).
		Str("branch_number", branchNumber).
		Interface("details", details).
		Msg("voting audit event")
}
