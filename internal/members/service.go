// Package members is the narrow surface the voting core uses to read member
// records and persist the registration-time contact update. Member
// management proper lives in the back office, not here.
package members

import (
	"context"
	"errors"
	"strings"

	"coopvote-backend/internal/models"

	"gorm.io/gorm"
)

var ErrMemberNotFound = errors.New("member not found")

const searchLimit = 15

type Service struct {
	DB *gorm.DB
}

// Search returns at most 15 members of the branch whose name or code matches
// the term. The handler enforces the 3-character minimum before calling.
func (s *Service) Search(ctx context.Context, branchNumber, term string) ([]models.Member, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	var found []models.Member
	err := s.DB.WithContext(ctx).
		Where("branch_number = ?", branchNumber).
		Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(code) LIKE ?",
			pattern, pattern, pattern).
		Order("last_name, first_name").
		Limit(searchLimit).
		Find(&found).Error
	return found, err
}

func (s *Service) FindByID(ctx context.Context, memberID uint) (*models.Member, error) {
	var m models.Member
	if err := s.DB.WithContext(ctx).Where("member_id = ?", memberID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Service) FindByCode(ctx context.Context, code string) (*models.Member, error) {
	var m models.Member
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ContactUpdate carries the editable fields of the update-info step. Nil
// fields are left untouched.
type ContactUpdate struct {
	Phone   *string
	Email   *string
	Address *string
}

// UpdateContact persists contact edits and marks the member registered. This
// runs before the ballot is shown and is not part of the vote transaction.
func (s *Service) UpdateContact(ctx context.Context, memberID uint, in ContactUpdate) (*models.Member, error) {
	updates := map[string]interface{}{"is_registered": true}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil {
		updates["email"] = strings.TrimSpace(*in.Email)
	}
	if in.Address != nil {
		updates["address"] = strings.TrimSpace(*in.Address)
	}
	res := s.DB.WithContext(ctx).Model(&models.Member{}).
		Where("member_id = ?", memberID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrMemberNotFound
	}
	return s.FindByID(ctx, memberID)
}
