package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/storage"
	"github.com/yiback/gatherly/internal/validation"
	"gorm.io/gorm"
)

type ProfileService struct {
	db     *gorm.DB
	cache  cache.Invalidator
	store  storage.ObjectStore
	bucket string
	images config.ImageConfig
}

func NewProfileService(db *gorm.DB, invalidator cache.Invalidator, store storage.ObjectStore, cfg *config.Config) *ProfileService {
	return &ProfileService{
		db:     db,
		cache:  invalidator,
		store:  store,
		bucket: cfg.Storage.AvatarsBucket,
		images: cfg.Images,
	}
}

type ProfileRequest struct {
	DisplayName string `json:"display_name" form:"display_name" validate:"required,min=1,max=50"`
}

const profilePath = "/api/profile"

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return nil, notFoundOr(ErrProfileNotFound, "load profile", err)
	}
	return &profile, nil
}

func (s *ProfileService) Update(ctx context.Context, userID string, req *ProfileRequest) (*models.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}
	if err := s.db.WithContext(ctx).Model(profile).Update("display_name", req.DisplayName).Error; err != nil {
		return nil, upstream("update profile", err)
	}
	profile.DisplayName = req.DisplayName
	s.cache.Invalidate(ctx, profilePath)
	return profile, nil
}

// UploadAvatar stores a resized avatar and drops the previous object.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, data []byte) (*models.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	img, err := prepareImage(data, MaxAvatarBytes, s.images.AvatarMaxWidth, s.images)
	if err != nil {
		return nil, err
	}

	path := objectPath(userID, img.Ext)
	if err := s.store.Upload(ctx, s.bucket, path, img.Data, img.ContentType); err != nil {
		return nil, upstream("upload avatar", err)
	}
	previous := profile.AvatarPath
	url := s.store.PublicURL(s.bucket, path)
	if err := s.db.WithContext(ctx).Model(profile).Updates(map[string]interface{}{
		"avatar_url":  url,
		"avatar_path": path,
	}).Error; err != nil {
		removeObject(ctx, s.store, s.bucket, path)
		return nil, upstream("save avatar", err)
	}
	profile.AvatarURL, profile.AvatarPath = url, path

	removeObject(ctx, s.store, s.bucket, previous)
	s.cache.Invalidate(ctx, profilePath)
	return profile, nil
}

func (s *ProfileService) RemoveAvatar(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := profile.AvatarPath
	if err := s.db.WithContext(ctx).Model(profile).Updates(map[string]interface{}{
		"avatar_url":  "",
		"avatar_path": "",
	}).Error; err != nil {
		return nil, upstream("remove avatar", err)
	}
	profile.AvatarURL, profile.AvatarPath = "", ""
	removeObject(ctx, s.store, s.bucket, previous)
	s.cache.Invalidate(ctx, profilePath)
	return profile, nil
}

// EnsureProfile returns the profile for email, creating it on first sign-in.
// Existing profiles keep their display name and avatar.
func (s *ProfileService) EnsureProfile(ctx context.Context, email, displayName, avatarURL string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrUnauthenticated
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, upstream("load profile", err)
	}

	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	profile = models.Profile{Email: email, DisplayName: displayName, AvatarURL: avatarURL}
	err = s.db.WithContext(ctx).Create(&profile).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Concurrent first sign-in created it.
		if err := s.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error; err != nil {
			return nil, upstream("load profile", err)
		}
		return &profile, nil
	}
	if err != nil {
		return nil, upstream("create profile", err)
	}
	return &profile, nil
}
