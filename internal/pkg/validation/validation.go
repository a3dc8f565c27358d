package validation

import (
	"regexp"
	"strings"
	"time"
)

// Last four digits of the share account as the member types them.
var lastFourRe = regexp.MustCompile(`^[0-9]{4}$`)

// Email check, intentionally loose: anything@anything.anything.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minSearchTermLen = 3

func IsValidSearchTerm(term string) bool {
	return len(strings.TrimSpace(term)) >= minSearchTermLen
}

func IsValidLastFour(s string) bool {
	return lastFourRe.MatchString(s)
}

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// ParseBirthDate accepts the date the verify form posts (YYYY-MM-DD).
func ParseBirthDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
