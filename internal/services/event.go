package services

import (
	"context"
	"strings"
	"time"

	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/permission"
	"github.com/yiback/gatherly/internal/storage"
	"github.com/yiback/gatherly/internal/validation"
	"github.com/yiback/gatherly/pkg/logger"
	"github.com/yiback/gatherly/pkg/response"
	"gorm.io/gorm"
)

type EventService struct {
	db      *gorm.DB
	members *MembershipService
	cache   cache.Invalidator
	queue   TaskQueue
	store   storage.ObjectStore
	bucket  string
}

func NewEventService(db *gorm.DB, invalidator cache.Invalidator, queue TaskQueue, store storage.ObjectStore, cfg *config.Config) *EventService {
	return &EventService{
		db:      db,
		members: NewMembershipService(db),
		cache:   invalidator,
		queue:   queue,
		store:   store,
		bucket:  cfg.Storage.EventImagesBucket,
	}
}

// EventRequest is shared by create and update. Status is ignored on create.
type EventRequest struct {
	Title            string             `json:"title" form:"title" validate:"min=2,max=100"`
	Description      string             `json:"description" form:"description" validate:"max=2000"`
	Date             *time.Time         `json:"date" form:"date" time_format:"2006-01-02T15:04:05Z07:00" validate:"required"`
	Location         string             `json:"location" form:"location" validate:"max=200"`
	ResponseDeadline *time.Time         `json:"response_deadline" form:"response_deadline" time_format:"2006-01-02T15:04:05Z07:00"`
	MaxParticipants  *int               `json:"max_participants" form:"max_participants" validate:"omitempty,min=1,max=100"`
	Cost             float64            `json:"cost" form:"cost" validate:"gte=0"`
	Status           models.EventStatus `json:"status" form:"status" validate:"omitempty,oneof=scheduled ongoing completed cancelled"`
}

func (r *EventRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	if r.Date != nil {
		d := r.Date.UTC()
		r.Date = &d
	}
	if r.ResponseDeadline != nil {
		d := r.ResponseDeadline.UTC()
		r.ResponseDeadline = &d
	}
}

func (r *EventRequest) validate() error {
	if err := validation.Struct(r); err != nil {
		return invalid(err)
	}
	if r.ResponseDeadline != nil && r.ResponseDeadline.After(*r.Date) {
		return response.NewBadRequest("response_deadline: must not be after date")
	}
	return nil
}

type EventStatusRequest struct {
	Status models.EventStatus `json:"status" form:"status" validate:"required,oneof=scheduled ongoing completed cancelled"`
}

func eventPath(id string) string {
	return "/api/events/" + id
}

func (s *EventService) invalidate(ctx context.Context, event *models.Event) {
	s.cache.Invalidate(ctx,
		eventPath(event.ID),
		groupPath(event.GroupID),
		groupPath(event.GroupID)+"/events",
		"/api/events/upcoming",
	)
}

func (s *EventService) Create(ctx context.Context, userID, groupID string, req *EventRequest) (*models.Event, error) {
	role, err := s.members.Authorize(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !permission.CanCreateEvent(role) {
		return nil, ErrForbidden
	}
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	event := &models.Event{
		GroupID:          groupID,
		Title:            req.Title,
		Description:      req.Description,
		Date:             *req.Date,
		Location:         req.Location,
		ResponseDeadline: req.ResponseDeadline,
		MaxParticipants:  req.MaxParticipants,
		Cost:             req.Cost,
		Status:           models.EventScheduled,
		CreatedBy:        userID,
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, upstream("create event", err)
	}

	s.invalidate(ctx, event)
	enqueueNotification(s.queue, &NotificationTask{
		Kind:    KindEventCreated,
		EventID: event.ID,
		ActorID: userID,
	})
	return event, nil
}

// load fetches an event and the caller's role in its group.
func (s *EventService) load(ctx context.Context, userID, eventID string) (*models.Event, models.Role, error) {
	if err := requireCaller(userID); err != nil {
		return nil, "", err
	}
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		return nil, "", notFoundOr(ErrEventNotFound, "load event", err)
	}
	role, err := s.members.GetRole(ctx, event.GroupID, userID)
	if err != nil {
		return nil, "", err
	}
	return &event, role, nil
}

func (s *EventService) Get(ctx context.Context, userID, eventID string) (*models.Event, error) {
	event, _, err := s.load(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	var group models.Group
	if err := s.db.WithContext(ctx).Select("id", "name", "slug", "image_url").First(&group, "id = ?", event.GroupID).Error; err == nil {
		event.Group = &group
	}
	return event, nil
}

// ListByGroup pages through a group's events, latest date first.
func (s *EventService) ListByGroup(ctx context.Context, userID, groupID string, req PageRequest) (*response.Page[models.Event], error) {
	if _, err := s.members.Authorize(ctx, groupID, userID); err != nil {
		return nil, err
	}
	q, err := paginate(s.db.WithContext(ctx).Where("group_id = ?", groupID), "date", req)
	if err != nil {
		return nil, err
	}
	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, upstream("load events", err)
	}
	return buildPage(events, req, func(e models.Event) (time.Time, string) { return e.Date, e.ID }), nil
}

// ListUpcoming returns scheduled or ongoing events in the caller's groups, soonest first.
func (s *EventService) ListUpcoming(ctx context.Context, userID string, limit int) ([]models.Event, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	groupIDs, err := s.members.GroupIDs(ctx, userID)
	if err != nil {
		return nil, upstream("load events", err)
	}
	events := []models.Event{}
	if len(groupIDs) == 0 {
		return events, nil
	}
	err = s.db.WithContext(ctx).
		Preload("Group").
		Where("group_id IN ? AND date >= ? AND status IN ?", groupIDs, time.Now().UTC(),
			[]models.EventStatus{models.EventScheduled, models.EventOngoing}).
		Order("date ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, upstream("load events", err)
	}
	return events, nil
}

func (s *EventService) Update(ctx context.Context, userID, eventID string, req *EventRequest) (*models.Event, error) {
	event, role, err := s.load(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if !permission.CanManageEvent(role, event.CreatedBy, userID) {
		return nil, ErrForbidden
	}
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	event.Title = req.Title
	event.Description = req.Description
	event.Date = *req.Date
	event.Location = req.Location
	event.ResponseDeadline = req.ResponseDeadline
	event.MaxParticipants = req.MaxParticipants
	event.Cost = req.Cost
	if req.Status != "" {
		event.Status = req.Status
	}
	err = s.db.WithContext(ctx).Model(event).
		Select("title", "description", "date", "location", "response_deadline", "max_participants", "cost", "status", "updated_at").
		Updates(event).Error
	if err != nil {
		return nil, upstream("update event", err)
	}

	s.invalidate(ctx, event)
	return event, nil
}

func (s *EventService) UpdateStatus(ctx context.Context, userID, eventID string, req *EventStatusRequest) (*models.Event, error) {
	event, role, err := s.load(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if !permission.CanManageEvent(role, event.CreatedBy, userID) {
		return nil, ErrForbidden
	}
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	if err := s.db.WithContext(ctx).Model(event).Update("status", req.Status).Error; err != nil {
		return nil, upstream("update event status", err)
	}
	event.Status = req.Status

	s.invalidate(ctx, event)
	return event, nil
}

// Delete removes the event; participants, images and event announcements cascade.
func (s *EventService) Delete(ctx context.Context, userID, eventID string) (*models.Event, error) {
	event, role, err := s.load(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if !permission.CanManageEvent(role, event.CreatedBy, userID) {
		return nil, ErrForbidden
	}

	var imagePaths []string
	if err := s.db.WithContext(ctx).Model(&models.EventImage{}).
		Where("event_id = ?", event.ID).
		Pluck("storage_path", &imagePaths).Error; err != nil {
		logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to list event images, stored objects will be orphaned")
	}
	announcements := eventAnnouncementPaths(ctx, s.db, event.ID)

	if err := s.db.WithContext(ctx).Delete(event).Error; err != nil {
		return nil, upstream("delete event", err)
	}

	for _, p := range imagePaths {
		removeObject(ctx, s.store, s.bucket, p)
	}
	s.invalidate(ctx, event)
	s.cache.Invalidate(ctx, append(eventViewPaths(event.ID), announcements...)...)
	return event, nil
}
