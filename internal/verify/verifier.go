// Package verify checks a claimed member identity against stored secrets
// without ever revealing them. The client only ever sees a generic
// "does not match our records" message; the failure kind is for audit logs.
package verify

import (
	"strings"
	"time"

	"coopvote-backend/internal/models"
)

// FailureKind identifies which check failed. Logged, never shown verbatim.
type FailureKind string

const (
	ShareAccountMismatch    FailureKind = "SHARE_ACCOUNT_MISMATCH"
	SecurityAnswersMismatch FailureKind = "SECURITY_ANSWERS_MISMATCH"
)

// Input carries the claimed identity factors. At least one of MiddleName or
// BirthDate must be supplied; the handler enforces that before calling Verify.
type Input struct {
	LastFour   string
	MiddleName string
	BirthDate  *time.Time
}

// Verify compares the supplied factors against the stored member record.
// Verified requires the share-account suffix to match and at least one
// supplied knowledge factor (middle name or birth date) to match.
func Verify(m *models.Member, in Input) (bool, FailureKind) {
	if lastFourOf(m.ShareAccount) != in.LastFour {
		return false, ShareAccountMismatch
	}

	middleSupplied := strings.TrimSpace(in.MiddleName) != ""
	if middleSupplied && middleNameMatches(m.MiddleName, in.MiddleName) {
		return true, ""
	}
	if in.BirthDate != nil && birthDateMatches(m.BirthDate, *in.BirthDate) {
		return true, ""
	}
	return false, SecurityAnswersMismatch
}

// lastFourOf strips non-alphanumeric characters from the stored share account
// and returns the trailing 4 characters, compared case-sensitively.
func lastFourOf(account string) string {
	var b strings.Builder
	for _, r := range account {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) < 4 {
		return s
	}
	return s[len(s)-4:]
}

func middleNameMatches(stored, supplied string) bool {
	return strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(supplied))
}

// birthDateMatches compares calendar dates, not timestamps.
func birthDateMatches(stored *time.Time, supplied time.Time) bool {
	if stored == nil {
		return false
	}
	sy, sm, sd := stored.Date()
	iy, im, id := supplied.Date()
	return sy == iy && sm == im && sd == id
}
