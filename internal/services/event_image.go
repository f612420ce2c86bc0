package services

import (
	"context"

	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/permission"
	"github.com/yiback/gatherly/internal/storage"
	"github.com/yiback/gatherly/internal/validation"
	"github.com/yiback/gatherly/pkg/response"
	"gorm.io/gorm"
)

type EventImageService struct {
	db      *gorm.DB
	members *MembershipService
	cache   cache.Invalidator
	store   storage.ObjectStore
	bucket  string
	images  config.ImageConfig
}

func NewEventImageService(db *gorm.DB, invalidator cache.Invalidator, store storage.ObjectStore, cfg *config.Config) *EventImageService {
	return &EventImageService{
		db:      db,
		members: NewMembershipService(db),
		cache:   invalidator,
		store:   store,
		bucket:  cfg.Storage.EventImagesBucket,
		images:  cfg.Images,
	}
}

type ReorderImagesRequest struct {
	ImageIDs []string `json:"image_ids" form:"image_ids" validate:"required,min=1,max=5,unique,dive,required"`
}

func imagesPath(eventID string) string {
	return eventPath(eventID) + "/images"
}

// authorize loads the event and checks that the caller may manage its images.
func (s *EventImageService) authorize(ctx context.Context, userID, eventID string, manage bool) (*models.Event, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		return nil, notFoundOr(ErrEventNotFound, "load event", err)
	}
	role, err := s.members.GetRole(ctx, event.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if manage && !permission.CanManageImages(role, event.CreatedBy, userID) {
		return nil, ErrForbidden
	}
	return &event, nil
}

func (s *EventImageService) List(ctx context.Context, userID, eventID string) ([]models.EventImage, error) {
	if _, err := s.authorize(ctx, userID, eventID, false); err != nil {
		return nil, err
	}
	var images []models.EventImage
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("display_order ASC").
		Find(&images).Error; err != nil {
		return nil, upstream("load images", err)
	}
	return images, nil
}

// Upload stores a resized image and appends it to the event's gallery.
func (s *EventImageService) Upload(ctx context.Context, userID, eventID string, data []byte) (*models.EventImage, error) {
	if _, err := s.authorize(ctx, userID, eventID, true); err != nil {
		return nil, err
	}

	var stats struct {
		Count    int64
		MaxOrder *int
	}
	if err := s.db.WithContext(ctx).Model(&models.EventImage{}).
		Select("COUNT(*) AS count, MAX(display_order) AS max_order").
		Where("event_id = ?", eventID).
		Scan(&stats).Error; err != nil {
		return nil, upstream("upload image", err)
	}
	if stats.Count >= MaxImagesPerEvent {
		return nil, ErrImageLimit
	}

	img, err := prepareImage(data, MaxImageBytes, s.images.MaxWidth, s.images)
	if err != nil {
		return nil, err
	}

	path := objectPath(eventID, img.Ext)
	if err := s.store.Upload(ctx, s.bucket, path, img.Data, img.ContentType); err != nil {
		return nil, upstream("upload image", err)
	}

	order := 0
	if stats.MaxOrder != nil {
		order = *stats.MaxOrder + 1
	}
	image := &models.EventImage{
		EventID:      eventID,
		ImageURL:     s.store.PublicURL(s.bucket, path),
		StoragePath:  path,
		DisplayOrder: order,
	}
	if err := s.db.WithContext(ctx).Create(image).Error; err != nil {
		removeObject(ctx, s.store, s.bucket, path)
		return nil, upstream("save image", err)
	}

	s.cache.Invalidate(ctx, eventPath(eventID), imagesPath(eventID))
	return image, nil
}

// Reorder sets display_order to the position of each id in req. The ids must
// be exactly the event's current images.
func (s *EventImageService) Reorder(ctx context.Context, userID, eventID string, req *ReorderImagesRequest) ([]models.EventImage, error) {
	if _, err := s.authorize(ctx, userID, eventID, true); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.EventImage{}).
		Where("event_id = ?", eventID).
		Pluck("id", &existing).Error; err != nil {
		return nil, upstream("reorder images", err)
	}
	if !sameSet(existing, req.ImageIDs) {
		return nil, response.NewBadRequest("image_ids: must list every image of the event exactly once")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range req.ImageIDs {
			if err := tx.Model(&models.EventImage{}).
				Where("id = ? AND event_id = ?", id, eventID).
				Update("display_order", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, upstream("reorder images", err)
	}

	s.cache.Invalidate(ctx, eventPath(eventID), imagesPath(eventID))
	return s.List(ctx, userID, eventID)
}

func (s *EventImageService) Delete(ctx context.Context, userID, eventID, imageID string) error {
	if _, err := s.authorize(ctx, userID, eventID, true); err != nil {
		return err
	}
	var image models.EventImage
	if err := s.db.WithContext(ctx).Where("id = ? AND event_id = ?", imageID, eventID).First(&image).Error; err != nil {
		return notFoundOr(ErrImageNotFound, "load image", err)
	}
	if err := s.db.WithContext(ctx).Delete(&image).Error; err != nil {
		return upstream("delete image", err)
	}

	removeObject(ctx, s.store, s.bucket, image.StoragePath)
	s.cache.Invalidate(ctx, eventPath(eventID), imagesPath(eventID))
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
