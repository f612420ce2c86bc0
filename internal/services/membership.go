package services

import (
	"context"

	"github.com/yiback/gatherly/internal/models"
	"gorm.io/gorm"
)

// MembershipService answers role lookups for group-scoped checks.
type MembershipService struct {
	db *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

// GetRole returns the caller's role in the group or ErrNotMember.
func (s *MembershipService) GetRole(ctx context.Context, groupID, userID string) (models.Role, error) {
	var member models.GroupMember
	err := s.db.WithContext(ctx).
		Select("role").
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		return "", notFoundOr(ErrNotMember, "look up membership", err)
	}
	return member.Role, nil
}

// Authorize resolves the caller and their role in one step.
func (s *MembershipService) Authorize(ctx context.Context, groupID, userID string) (models.Role, error) {
	if err := requireCaller(userID); err != nil {
		return "", err
	}
	return s.GetRole(ctx, groupID, userID)
}

func (s *MembershipService) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (s *MembershipService) CountMembers(ctx context.Context, groupID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Count(&count).Error
	return count, err
}

func (s *MembershipService) GroupIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	return ids, err
}
