package services

import (
	"context"
	"strings"
	"time"

	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/permission"
	"github.com/yiback/gatherly/internal/validation"
	"github.com/yiback/gatherly/pkg/response"
	"gorm.io/gorm"
)

type AnnouncementService struct {
	db      *gorm.DB
	members *MembershipService
	cache   cache.Invalidator
	queue   TaskQueue
}

func NewAnnouncementService(db *gorm.DB, invalidator cache.Invalidator, queue TaskQueue) *AnnouncementService {
	return &AnnouncementService{db: db, members: NewMembershipService(db), cache: invalidator, queue: queue}
}

type AnnouncementRequest struct {
	GroupID string `json:"group_id" form:"group_id"`
	EventID string `json:"event_id" form:"event_id"`
	Title   string `json:"title" form:"title" validate:"min=2,max=100"`
	Content string `json:"content" form:"content" validate:"min=10,max=1000"`
}

func (r *AnnouncementRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
}

func announcementPath(id string) string {
	return "/api/announcements/" + id
}

func (s *AnnouncementService) invalidate(ctx context.Context, a *models.Announcement) {
	paths := []string{announcementPath(a.ID)}
	if a.GroupID != nil {
		paths = append(paths, groupPath(*a.GroupID)+"/announcements")
	}
	if a.EventID != nil {
		paths = append(paths, eventPath(*a.EventID)+"/announcements")
	}
	s.cache.Invalidate(ctx, paths...)
}

// scope resolves the group that governs an announcement. An event-scoped
// announcement belongs to the event's group.
func (s *AnnouncementService) scope(ctx context.Context, groupID, eventID string) (string, *string, error) {
	if eventID == "" {
		if groupID == "" {
			return "", nil, response.NewBadRequest("group_id: is required")
		}
		return groupID, nil, nil
	}
	var event models.Event
	if err := s.db.WithContext(ctx).Select("id", "group_id").First(&event, "id = ?", eventID).Error; err != nil {
		return "", nil, notFoundOr(ErrEventNotFound, "load event", err)
	}
	if groupID != "" && groupID != event.GroupID {
		return "", nil, response.NewBadRequest("event_id: does not belong to group")
	}
	return event.GroupID, &event.ID, nil
}

func (s *AnnouncementService) Create(ctx context.Context, userID string, req *AnnouncementRequest) (*models.Announcement, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	groupID, eventID, err := s.scope(ctx, req.GroupID, req.EventID)
	if err != nil {
		return nil, err
	}
	role, err := s.members.GetRole(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !permission.CanCreateAnnouncement(role) {
		return nil, ErrForbidden
	}
	req.normalize()
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	ann := &models.Announcement{
		GroupID:  &groupID,
		EventID:  eventID,
		Title:    req.Title,
		Content:  req.Content,
		AuthorID: userID,
	}
	if err := s.db.WithContext(ctx).Create(ann).Error; err != nil {
		return nil, upstream("create announcement", err)
	}

	s.invalidate(ctx, ann)
	enqueueNotification(s.queue, &NotificationTask{
		Kind:           KindAnnouncementPosted,
		AnnouncementID: ann.ID,
		ActorID:        userID,
	})
	return ann, nil
}

func (s *AnnouncementService) load(ctx context.Context, userID, id string) (*models.Announcement, models.Role, error) {
	if err := requireCaller(userID); err != nil {
		return nil, "", err
	}
	var ann models.Announcement
	if err := s.db.WithContext(ctx).Preload("Author").First(&ann, "id = ?", id).Error; err != nil {
		return nil, "", notFoundOr(ErrAnnouncementNotFound, "load announcement", err)
	}
	groupID := ""
	if ann.GroupID != nil {
		groupID = *ann.GroupID
	} else if ann.EventID != nil {
		var event models.Event
		if err := s.db.WithContext(ctx).Select("group_id").First(&event, "id = ?", *ann.EventID).Error; err != nil {
			return nil, "", notFoundOr(ErrAnnouncementNotFound, "load announcement", err)
		}
		groupID = event.GroupID
	}
	role, err := s.members.GetRole(ctx, groupID, userID)
	if err != nil {
		return nil, "", err
	}
	return &ann, role, nil
}

func (s *AnnouncementService) Get(ctx context.Context, userID, id string) (*models.Announcement, error) {
	ann, _, err := s.load(ctx, userID, id)
	return ann, err
}

func (s *AnnouncementService) ListByGroup(ctx context.Context, userID, groupID string, req PageRequest) (*response.Page[models.Announcement], error) {
	if _, err := s.members.Authorize(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.list(ctx, s.db.WithContext(ctx).Where("group_id = ?", groupID), req)
}

func (s *AnnouncementService) ListByEvent(ctx context.Context, userID, eventID string, req PageRequest) (*response.Page[models.Announcement], error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	var event models.Event
	if err := s.db.WithContext(ctx).Select("id", "group_id").First(&event, "id = ?", eventID).Error; err != nil {
		return nil, notFoundOr(ErrEventNotFound, "load event", err)
	}
	if _, err := s.members.GetRole(ctx, event.GroupID, userID); err != nil {
		return nil, err
	}
	return s.list(ctx, s.db.WithContext(ctx).Where("event_id = ?", eventID), req)
}

func (s *AnnouncementService) list(ctx context.Context, q *gorm.DB, req PageRequest) (*response.Page[models.Announcement], error) {
	q, err := paginate(q.Preload("Author"), "created_at", req)
	if err != nil {
		return nil, err
	}
	var items []models.Announcement
	if err := q.Find(&items).Error; err != nil {
		return nil, upstream("load announcements", err)
	}
	return buildPage(items, req, func(a models.Announcement) (time.Time, string) { return a.CreatedAt, a.ID }), nil
}

func (s *AnnouncementService) Update(ctx context.Context, userID, id string, req *AnnouncementRequest) (*models.Announcement, error) {
	ann, role, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanManageAnnouncement(role, ann.AuthorID, userID) {
		return nil, ErrForbidden
	}
	req.normalize()
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	if err := s.db.WithContext(ctx).Model(ann).Updates(map[string]interface{}{
		"title":   req.Title,
		"content": req.Content,
	}).Error; err != nil {
		return nil, upstream("update announcement", err)
	}
	ann.Title = req.Title
	ann.Content = req.Content

	s.invalidate(ctx, ann)
	return ann, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, userID, id string) (*models.Announcement, error) {
	ann, role, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanManageAnnouncement(role, ann.AuthorID, userID) {
		return nil, ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(&models.Announcement{}, "id = ?", ann.ID).Error; err != nil {
		return nil, upstream("delete announcement", err)
	}

	s.invalidate(ctx, ann)
	return ann, nil
}
