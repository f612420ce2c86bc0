package services

import (
	"context"
	"strings"

	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PushSubscriptionService struct {
	db *gorm.DB
}

func NewPushSubscriptionService(db *gorm.DB) *PushSubscriptionService {
	return &PushSubscriptionService{db: db}
}

// SubscribeRequest mirrors the browser's PushSubscription.toJSON() shape.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url,max=500"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required,max=255"`
		Auth   string `json:"auth" validate:"required,max=255"`
	} `json:"keys"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// Subscribe registers the endpoint for userID. An endpoint that already
// exists is moved to userID with the new keys.
func (s *PushSubscriptionService) Subscribe(ctx context.Context, userID string, req *SubscribeRequest) (*models.PushSubscription, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	sub := &models.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "updated_at"}),
	}).Create(sub).Error; err != nil {
		return nil, upstream("save push subscription", err)
	}

	var saved models.PushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ?", req.Endpoint).First(&saved).Error; err != nil {
		return nil, upstream("load push subscription", err)
	}
	return &saved, nil
}

func (s *PushSubscriptionService) Unsubscribe(ctx context.Context, userID string, req *UnsubscribeRequest) error {
	if err := requireCaller(userID); err != nil {
		return err
	}
	if err := validation.Struct(req); err != nil {
		return invalid(err)
	}
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, req.Endpoint).
		Delete(&models.PushSubscription{})
	if result.Error != nil {
		return upstream("delete push subscription", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *PushSubscriptionService) List(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	var subs []models.PushSubscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, upstream("load push subscriptions", err)
	}
	return subs, nil
}
