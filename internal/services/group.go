package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/permission"
	"github.com/yiback/gatherly/internal/storage"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/internal/validation"
	"github.com/yiback/gatherly/pkg/logger"
	"gorm.io/gorm"
)

const inviteCodeAttempts = 5

type GroupService struct {
	db          *gorm.DB
	members     *MembershipService
	cache       cache.Invalidator
	store       storage.ObjectStore
	bucket      string
	eventBucket string
	images      config.ImageConfig
}

func NewGroupService(db *gorm.DB, invalidator cache.Invalidator, store storage.ObjectStore, cfg *config.Config) *GroupService {
	return &GroupService{
		db:          db,
		members:     NewMembershipService(db),
		cache:       invalidator,
		store:       store,
		bucket:      cfg.Storage.GroupImagesBucket,
		eventBucket: cfg.Storage.EventImagesBucket,
		images:      cfg.Images,
	}
}

type GroupRequest struct {
	Name        string `json:"name" form:"name" validate:"min=2,max=50"`
	Description string `json:"description" form:"description" validate:"max=500"`
}

func (r *GroupRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func groupPath(id string) string {
	return "/api/groups/" + id
}

// Create makes the caller the owner of a new group with a fresh invite code.
func (s *GroupService) Create(ctx context.Context, userID string, req *GroupRequest) (*models.Group, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	req.normalize()
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	code, err := s.uniqueInviteCode(ctx)
	if err != nil {
		return nil, upstream("create group", err)
	}

	group := &models.Group{
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		Description: req.Description,
		InviteCode:  code,
		OwnerID:     userID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		return tx.Create(&models.GroupMember{
			GroupID: group.ID,
			UserID:  userID,
			Role:    models.RoleOwner,
		}).Error
	})
	if err != nil {
		return nil, upstream("create group", err)
	}

	group.MyRole = models.RoleOwner
	s.cache.Invalidate(ctx, "/api/groups")
	return group, nil
}

func (s *GroupService) uniqueInviteCode(ctx context.Context) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code, err := utils.GenerateInviteCode(utils.DefaultInviteCodeLength)
		if err != nil {
			return "", err
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique invite code")
}

// Get returns the group as seen by a member. Only owners and admins see the invite code.
func (s *GroupService) Get(ctx context.Context, userID, groupID string) (*models.Group, error) {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	var group models.Group
	if err := s.db.WithContext(ctx).Preload("Owner").First(&group, "id = ?", groupID).Error; err != nil {
		return nil, notFoundOr(ErrGroupNotFound, "load group", err)
	}
	group.MyRole = role
	if !permission.CanManageMembers(role) {
		group.InviteCode = ""
		group.InviteCodeExpiresAt = nil
	}
	return &group, nil
}

// ListMine returns the caller's groups, most recently joined first.
func (s *GroupService) ListMine(ctx context.Context, userID string) ([]models.Group, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	var memberships []models.GroupMember
	err := s.db.WithContext(ctx).
		Preload("Group").
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&memberships).Error
	if err != nil {
		return nil, upstream("load groups", err)
	}

	groups := make([]models.Group, 0, len(memberships))
	for _, m := range memberships {
		if m.Group == nil {
			continue
		}
		g := *m.Group
		g.MyRole = m.Role
		if !permission.CanManageMembers(m.Role) {
			g.InviteCode = ""
			g.InviteCodeExpiresAt = nil
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *GroupService) Update(ctx context.Context, userID, groupID string, req *GroupRequest) (*models.Group, error) {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !permission.CanUpdateGroup(role) {
		return nil, ErrForbidden
	}
	req.normalize()
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	result := s.db.WithContext(ctx).Model(&models.Group{ID: groupID}).Updates(map[string]interface{}{
		"name":        req.Name,
		"slug":        slug.Make(req.Name),
		"description": req.Description,
	})
	if result.Error != nil {
		return nil, upstream("update group", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrGroupNotFound
	}

	s.cache.Invalidate(ctx, "/api/groups", groupPath(groupID))
	return s.Get(ctx, userID, groupID)
}

// Delete removes the group; the datastore cascades to members, events and announcements.
func (s *GroupService) Delete(ctx context.Context, userID, groupID string) error {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !permission.CanDeleteGroup(role) {
		return ErrForbidden
	}

	var group models.Group
	if err := s.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		return notFoundOr(ErrGroupNotFound, "load group", err)
	}
	var imagePaths []string
	if err := s.db.WithContext(ctx).Model(&models.EventImage{}).
		Joins("JOIN events ON events.id = event_images.event_id").
		Where("events.group_id = ?", groupID).
		Pluck("event_images.storage_path", &imagePaths).Error; err != nil {
		logger.Error().Err(err).Str("group_id", groupID).Msg("failed to list event images, stored objects will be orphaned")
	}
	views := groupViewPaths(ctx, s.db, groupID)

	if err := s.db.WithContext(ctx).Delete(&group).Error; err != nil {
		return upstream("delete group", err)
	}

	removeObject(ctx, s.store, s.bucket, group.ImagePath)
	for _, p := range imagePaths {
		removeObject(ctx, s.store, s.eventBucket, p)
	}
	s.cache.Invalidate(ctx, views...)
	return nil
}

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" form:"invite_code" validate:"required,min=4,max=16"`
}

// JoinByCode redeems an invite code and adds the caller as a member.
func (s *GroupService) JoinByCode(ctx context.Context, userID string, req *JoinGroupRequest) (*models.Group, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	req.InviteCode = strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	var group models.Group
	if err := s.db.WithContext(ctx).Where("invite_code = ?", req.InviteCode).First(&group).Error; err != nil {
		return nil, notFoundOr(ErrInvalidInviteCode, "look up invite code", err)
	}
	if group.InviteCodeExpiresAt != nil && time.Now().After(*group.InviteCodeExpiresAt) {
		return nil, ErrInviteCodeExpired
	}

	if _, err := s.members.GetRole(ctx, group.ID, userID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, ErrNotMember) {
		return nil, err
	}

	err := s.db.WithContext(ctx).Create(&models.GroupMember{
		GroupID: group.ID,
		UserID:  userID,
		Role:    models.RoleMember,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrAlreadyMember
	}
	if err != nil {
		return nil, upstream("join group", err)
	}

	s.cache.Invalidate(ctx, "/api/groups", groupPath(group.ID), groupPath(group.ID)+"/members")
	group.MyRole = models.RoleMember
	group.InviteCode = ""
	group.InviteCodeExpiresAt = nil
	return &group, nil
}

// UploadImage replaces the group's cover image.
func (s *GroupService) UploadImage(ctx context.Context, userID, groupID string, data []byte) (*models.Group, error) {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !permission.CanUpdateGroup(role) {
		return nil, ErrForbidden
	}
	img, err := prepareImage(data, MaxImageBytes, s.images.MaxWidth, s.images)
	if err != nil {
		return nil, err
	}

	var group models.Group
	if err := s.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		return nil, notFoundOr(ErrGroupNotFound, "load group", err)
	}

	path := objectPath(groupID, img.Ext)
	if err := s.store.Upload(ctx, s.bucket, path, img.Data, img.ContentType); err != nil {
		return nil, upstream("upload image", err)
	}
	url := s.store.PublicURL(s.bucket, path)
	if err := s.db.WithContext(ctx).Model(&group).Updates(map[string]interface{}{
		"image_url":  url,
		"image_path": path,
	}).Error; err != nil {
		removeObject(ctx, s.store, s.bucket, path)
		return nil, upstream("save image", err)
	}

	removeObject(ctx, s.store, s.bucket, group.ImagePath)
	s.cache.Invalidate(ctx, "/api/groups", groupPath(groupID))
	return s.Get(ctx, userID, groupID)
}

func (s *GroupService) RemoveImage(ctx context.Context, userID, groupID string) error {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !permission.CanUpdateGroup(role) {
		return ErrForbidden
	}

	var group models.Group
	if err := s.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		return notFoundOr(ErrGroupNotFound, "load group", err)
	}
	if err := s.db.WithContext(ctx).Model(&group).Updates(map[string]interface{}{
		"image_url":  "",
		"image_path": "",
	}).Error; err != nil {
		return upstream("remove image", err)
	}

	removeObject(ctx, s.store, s.bucket, group.ImagePath)
	s.cache.Invalidate(ctx, "/api/groups", groupPath(groupID))
	return nil
}
