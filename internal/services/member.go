package services

import (
	"context"

	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/permission"
	"github.com/yiback/gatherly/internal/validation"
	"gorm.io/gorm"
)

type MemberService struct {
	db      *gorm.DB
	members *MembershipService
	cache   cache.Invalidator
}

func NewMemberService(db *gorm.DB, invalidator cache.Invalidator) *MemberService {
	return &MemberService{db: db, members: NewMembershipService(db), cache: invalidator}
}

type ChangeRoleRequest struct {
	Role models.Role `json:"role" form:"role" validate:"required,oneof=admin member"`
}

func membersPath(groupID string) string {
	return groupPath(groupID) + "/members"
}

// List returns the group's members with profiles, oldest first.
func (s *MemberService) List(ctx context.Context, userID, groupID string) ([]models.GroupMember, error) {
	if _, err := s.members.Authorize(ctx, groupID, userID); err != nil {
		return nil, err
	}
	var members []models.GroupMember
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, upstream("load members", err)
	}
	return members, nil
}

func (s *MemberService) ChangeRole(ctx context.Context, userID, groupID, targetUserID string, req *ChangeRoleRequest) (*models.GroupMember, error) {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if targetUserID == userID {
		return nil, ErrSelfRoleChange
	}
	target, err := s.find(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if !permission.CanChangeRoleTo(role, target.Role, req.Role) {
		return nil, ErrForbidden
	}
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	if err := s.db.WithContext(ctx).Model(target).Update("role", req.Role).Error; err != nil {
		return nil, upstream("change role", err)
	}
	target.Role = req.Role

	s.cache.Invalidate(ctx, groupViewPaths(ctx, s.db, groupID)...)
	return target, nil
}

func (s *MemberService) Remove(ctx context.Context, userID, groupID, targetUserID string) error {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if targetUserID == userID {
		return ErrSelfRemoval
	}
	target, err := s.find(ctx, groupID, targetUserID)
	if err != nil {
		return err
	}
	if !permission.CanRemoveMember(role, target.Role) {
		return ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(target).Error; err != nil {
		return upstream("remove member", err)
	}

	s.cache.Invalidate(ctx, groupViewPaths(ctx, s.db, groupID)...)
	return nil
}

// Leave removes the caller's own membership. The owner cannot leave.
func (s *MemberService) Leave(ctx context.Context, userID, groupID string) error {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if role == models.RoleOwner {
		return ErrOwnerCannotLeave
	}

	if err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{}).Error; err != nil {
		return upstream("leave group", err)
	}

	s.cache.Invalidate(ctx, groupViewPaths(ctx, s.db, groupID)...)
	return nil
}

func (s *MemberService) find(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error; err != nil {
		return nil, notFoundOr(ErrMemberNotFound, "load member", err)
	}
	return &member, nil
}
