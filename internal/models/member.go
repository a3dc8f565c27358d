package models

import (
	"strings"
	"time"
)

// Member is the membership snapshot the voting core reads. The member office
// owns these records; the core only updates contact fields and is_registered
// through the members service.
type Member struct {
	MemberID     uint       `gorm:"column:member_id;primaryKey;autoIncrement" json:"member_id"`
	Code         string     `gorm:"column:code;not null;uniqueIndex" json:"code"`
	BranchNumber string     `gorm:"column:branch_number;not null;index" json:"branch_number"`
	FirstName    string     `gorm:"column:first_name;not null" json:"first_name"`
	LastName     string     `gorm:"column:last_name;not null" json:"last_name"`
	MiddleName   string     `gorm:"column:middle_name" json:"middle_name"`
	BirthDate    *time.Time `gorm:"column:birth_date" json:"birth_date"`
	ShareAccount string     `gorm:"column:share_account" json:"-"`
	ShareAmount  string     `gorm:"column:share_amount;default:0" json:"share_amount"`
	IsMigs       bool       `gorm:"column:is_migs;default:false" json:"is_migs"`
	IsRegistered bool       `gorm:"column:is_registered;default:false" json:"is_registered"`
	Phone        string     `gorm:"column:phone" json:"phone"`
	Email        string     `gorm:"column:email" json:"email"`
	Address      string     `gorm:"column:address" json:"address"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (Member) TableName() string {
	return "members"
}

// FullName formats "Last, First Middle" for search results and receipts.
func (m *Member) FullName() string {
	name := m.LastName + ", " + m.FirstName
	if m.MiddleName != "" {
		name += " " + m.MiddleName
	}
	return name
}

// MeetsShareMinimum reports whether the member holds at least the minimum
// share capital. share_amount is a coded tier where any nonzero value means
// the P3,000 floor is met; the office sets it at data entry.
func (m *Member) MeetsShareMinimum() bool {
	s := strings.TrimSpace(m.ShareAmount)
	return s != "" && s != "0"
}
