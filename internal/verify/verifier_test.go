package verify

import (
	"testing"
	"time"

	"coopvote-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func storedMember() *models.Member {
	birth := time.Date(1975, time.March, 12, 0, 0, 0, 0, time.UTC)
	return &models.Member{
		Code:         "OICABCD-011-000123",
		BranchNumber: "011",
		ShareAccount: "SA-0099887766",
		MiddleName:   "Santos",
		BirthDate:    &birth,
	}
}

func TestVerify_ShareAccountAndMiddleName(t *testing.T) {
	ok, kind := Verify(storedMember(), Input{LastFour: "7766", MiddleName: "Santos"})
	assert.True(t, ok)
	assert.Empty(t, kind)
}

func TestVerify_MiddleNameCaseInsensitiveTrimmed(t *testing.T) {
	ok, _ := Verify(storedMember(), Input{LastFour: "7766", MiddleName: "  sAnToS  "})
	assert.True(t, ok)
}

func TestVerify_BirthDateAlone(t *testing.T) {
	// Same calendar date in a different location still matches.
	loc := time.FixedZone("PHT", 8*3600)
	birth := time.Date(1975, time.March, 12, 23, 59, 0, 0, loc)
	ok, kind := Verify(storedMember(), Input{LastFour: "7766", BirthDate: &birth})
	assert.True(t, ok)
	assert.Empty(t, kind)
}

func TestVerify_ShareAccountMismatch(t *testing.T) {
	ok, kind := Verify(storedMember(), Input{LastFour: "0000", MiddleName: "Santos"})
	assert.False(t, ok)
	assert.Equal(t, ShareAccountMismatch, kind)
}

func TestVerify_WrongMiddleNameNoBirthDate(t *testing.T) {
	ok, kind := Verify(storedMember(), Input{LastFour: "7766", MiddleName: "Cruz"})
	assert.False(t, ok)
	assert.Equal(t, SecurityAnswersMismatch, kind)
}

func TestVerify_WrongBirthDateButMiddleNameMatches(t *testing.T) {
	wrong := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	ok, _ := Verify(storedMember(), Input{LastFour: "7766", MiddleName: "Santos", BirthDate: &wrong})
	assert.True(t, ok)
}

func TestVerify_NeitherFactorSupplied(t *testing.T) {
	ok, kind := Verify(storedMember(), Input{LastFour: "7766"})
	assert.False(t, ok)
	assert.Equal(t, SecurityAnswersMismatch, kind)
}

func TestVerify_StoredAccountShorterThanFour(t *testing.T) {
	m := storedMember()
	m.ShareAccount = "7-6"
	ok, kind := Verify(m, Input{LastFour: "7766", MiddleName: "Santos"})
	assert.False(t, ok)
	assert.Equal(t, ShareAccountMismatch, kind)
}
