package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/push"
	"github.com/yiback/gatherly/internal/validation"
	"github.com/yiback/gatherly/pkg/logger"
	"github.com/yiback/gatherly/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationKind string

const (
	KindEventCreated       NotificationKind = "event_created"
	KindAnnouncementPosted NotificationKind = "announcement_posted"
	KindReminderDue        NotificationKind = "reminder_due"
	KindDirect             NotificationKind = "direct"
)

// NotificationTask is the queued unit of fan-out work. Direct tasks carry
// their own recipients and text; the other kinds resolve them from the datastore.
type NotificationTask struct {
	Kind           NotificationKind        `json:"kind"`
	EventID        string                  `json:"event_id,omitempty"`
	AnnouncementID string                  `json:"announcement_id,omitempty"`
	ActorID        string                  `json:"actor_id,omitempty"`
	RecipientIDs   []string                `json:"recipient_ids,omitempty"`
	Type           models.NotificationType `json:"type,omitempty"`
	Title          string                  `json:"title,omitempty"`
	Message        string                  `json:"message,omitempty"`
	URL            string                  `json:"url,omitempty"`
}

// DispatchResult summarizes one fan-out. Recipients counts users left after
// the preference filter; Sent, Failed and Removed count subscriptions.
type DispatchResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Removed    int `json:"removed"`
	Logged     int `json:"logged"`
}

type NotificationService struct {
	db      *gorm.DB
	members *MembershipService
	sender  push.Sender
	appURL  string
}

func NewNotificationService(db *gorm.DB, sender push.Sender, appURL string) *NotificationService {
	return &NotificationService{
		db:      db,
		members: NewMembershipService(db),
		sender:  sender,
		appURL:  appURL,
	}
}

type notificationMessage struct {
	Type    models.NotificationType
	Title   string
	Message string
	URL     string
	EventID *string
}

// Process is the queue processor. Results are logged; nothing is retried.
func (s *NotificationService) Process(ctx context.Context, task *NotificationTask) error {
	result, err := s.Dispatch(ctx, task)
	if err != nil {
		return err
	}
	logger.Info().
		Str("kind", string(task.Kind)).
		Str("event_id", task.EventID).
		Int("recipients", result.Recipients).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Int("removed", result.Removed).
		Msg("notification dispatched")
	return nil
}

// Dispatch resolves recipients, drops those who opted out, sends the payload
// to every remaining subscription and logs one row per reached recipient.
func (s *NotificationService) Dispatch(ctx context.Context, task *NotificationTask) (*DispatchResult, error) {
	result := &DispatchResult{}

	msg, recipients, err := s.resolve(ctx, task)
	if err != nil {
		return result, err
	}
	if len(recipients) == 0 {
		return result, nil
	}

	recipients, err = s.filterByPreference(ctx, recipients, msg.Type)
	if err != nil {
		return result, err
	}
	result.Recipients = len(recipients)
	if len(recipients) == 0 {
		return result, nil
	}

	eventID := ""
	if msg.EventID != nil {
		eventID = *msg.EventID
	}
	payload, err := json.Marshal(push.Payload{
		Title:   msg.Title,
		Body:    msg.Message,
		URL:     msg.URL,
		Type:    string(msg.Type),
		EventID: eventID,
	})
	if err != nil {
		return result, err
	}

	var subs []models.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id IN ?", recipients).Find(&subs).Error; err != nil {
		return result, fmt.Errorf("load subscriptions: %w", err)
	}

	delivered := make(map[string]bool)
	for _, sub := range subs {
		err := s.sender.Send(ctx, push.Subscription{Endpoint: sub.Endpoint, P256dh: sub.P256dh, Auth: sub.Auth}, payload)
		if err == nil {
			result.Sent++
			delivered[sub.UserID] = true
			continue
		}

		result.Failed++
		if push.IsGone(err) {
			if err := s.db.WithContext(ctx).Delete(&models.PushSubscription{}, "id = ?", sub.ID).Error; err != nil {
				logger.Warn().Err(err).Str("subscription_id", sub.ID).Msg("failed to remove expired subscription")
				continue
			}
			result.Removed++
			continue
		}
		logger.Warn().Err(err).Str("user_id", sub.UserID).Msg("push delivery failed")
	}

	now := time.Now().UTC()
	logs := make([]models.NotificationLog, 0, len(delivered))
	for _, userID := range recipients {
		if !delivered[userID] {
			continue
		}
		logs = append(logs, models.NotificationLog{
			UserID:  userID,
			Type:    msg.Type,
			Title:   msg.Title,
			Message: msg.Message,
			EventID: msg.EventID,
			SentAt:  now,
		})
	}
	if len(logs) > 0 {
		if err := s.db.WithContext(ctx).CreateInBatches(logs, 100).Error; err != nil {
			return result, fmt.Errorf("write notification logs: %w", err)
		}
		result.Logged = len(logs)
	}

	return result, nil
}

func (s *NotificationService) resolve(ctx context.Context, task *NotificationTask) (*notificationMessage, []string, error) {
	db := s.db.WithContext(ctx)

	switch task.Kind {
	case KindEventCreated:
		var event models.Event
		if err := db.Preload("Group").First(&event, "id = ?", task.EventID).Error; err != nil {
			return nil, nil, fmt.Errorf("load event %s: %w", task.EventID, err)
		}
		ids, err := s.members.MemberIDs(ctx, event.GroupID)
		if err != nil {
			return nil, nil, err
		}
		groupName := ""
		if event.Group != nil {
			groupName = event.Group.Name
		}
		return &notificationMessage{
			Type:    models.NotificationNewEvent,
			Title:   fmt.Sprintf("New event in %s", groupName),
			Message: fmt.Sprintf("%s on %s", event.Title, formatEventDate(event.Date)),
			URL:     s.appURL + "/events/" + event.ID,
			EventID: &event.ID,
		}, without(ids, task.ActorID), nil

	case KindAnnouncementPosted:
		var ann models.Announcement
		if err := db.First(&ann, "id = ?", task.AnnouncementID).Error; err != nil {
			return nil, nil, fmt.Errorf("load announcement %s: %w", task.AnnouncementID, err)
		}
		msg := &notificationMessage{
			Type:    models.NotificationAnnouncement,
			Title:   ann.Title,
			Message: truncate(ann.Content, 120),
			EventID: ann.EventID,
		}
		var ids []string
		var err error
		if ann.EventID != nil {
			msg.URL = s.appURL + "/events/" + *ann.EventID
			ids, err = s.respondentIDs(ctx, *ann.EventID)
		} else if ann.GroupID != nil {
			msg.URL = s.appURL + "/groups/" + *ann.GroupID + "/announcements"
			ids, err = s.members.MemberIDs(ctx, *ann.GroupID)
		}
		if err != nil {
			return nil, nil, err
		}
		return msg, without(ids, task.ActorID), nil

	case KindReminderDue:
		var event models.Event
		if err := db.First(&event, "id = ?", task.EventID).Error; err != nil {
			return nil, nil, fmt.Errorf("load event %s: %w", task.EventID, err)
		}
		ids, err := s.respondentIDs(ctx, event.ID)
		if err != nil {
			return nil, nil, err
		}
		message := "Starts " + formatEventDate(event.Date)
		if event.Location != "" {
			message += " at " + event.Location
		}
		return &notificationMessage{
			Type:    models.NotificationReminder,
			Title:   "Reminder: " + event.Title,
			Message: message,
			URL:     s.appURL + "/events/" + event.ID,
			EventID: &event.ID,
		}, ids, nil

	case KindDirect:
		msg := &notificationMessage{
			Type:    task.Type,
			Title:   task.Title,
			Message: task.Message,
			URL:     task.URL,
		}
		if task.EventID != "" {
			eventID := task.EventID
			msg.EventID = &eventID
		}
		return msg, without(task.RecipientIDs, task.ActorID), nil
	}

	return nil, nil, fmt.Errorf("unknown notification kind %q", task.Kind)
}

// respondentIDs returns users who answered attending or maybe.
func (s *NotificationService) respondentIDs(ctx context.Context, eventID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Participant{}).
		Where("event_id = ? AND status IN ?", eventID, []models.AttendanceStatus{models.Attending, models.Maybe}).
		Pluck("user_id", &ids).Error
	return ids, err
}

// filterByPreference keeps recipients who allow t. A missing preference row allows everything.
func (s *NotificationService) filterByPreference(ctx context.Context, recipients []string, t models.NotificationType) ([]string, error) {
	var prefs []models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("user_id IN ?", recipients).Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	byUser := make(map[string]*models.NotificationPreference, len(prefs))
	for i := range prefs {
		byUser[prefs[i].UserID] = &prefs[i]
	}

	kept := make([]string, 0, len(recipients))
	for _, id := range recipients {
		if pref, ok := byUser[id]; ok && !pref.Allows(t) {
			continue
		}
		kept = append(kept, id)
	}
	return kept, nil
}

// without de-duplicates ids and drops exclude.
func without(ids []string, exclude string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func formatEventDate(t time.Time) string {
	return t.UTC().Format("Mon, Jan 2 15:04 MST")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// --- Internal fan-out endpoint ---

type DirectNotificationRequest struct {
	UserIDs []string                `json:"user_ids" validate:"required,min=1,max=500,dive,required"`
	Type    models.NotificationType `json:"type" validate:"required,oneof=new_event reminder announcement"`
	Title   string                  `json:"title" validate:"required,max=200"`
	Message string                  `json:"message" validate:"required,max=1000"`
	URL     string                  `json:"url" validate:"omitempty,max=500"`
	EventID string                  `json:"event_id" validate:"omitempty,max=36"`
}

// SendDirect runs a fan-out to an explicit recipient list and waits for it.
func (s *NotificationService) SendDirect(ctx context.Context, req *DirectNotificationRequest) (*DispatchResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}
	result, err := s.Dispatch(ctx, &NotificationTask{
		Kind:         KindDirect,
		RecipientIDs: req.UserIDs,
		Type:         req.Type,
		Title:        req.Title,
		Message:      req.Message,
		URL:          req.URL,
		EventID:      req.EventID,
	})
	if err != nil {
		return nil, upstream("send notifications", err)
	}
	return result, nil
}

// --- Per-user notification log and preferences ---

func (s *NotificationService) List(ctx context.Context, userID string, req PageRequest) (*response.Page[models.NotificationLog], error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	q, err := paginate(s.db.WithContext(ctx).Where("user_id = ?", userID), "sent_at", req)
	if err != nil {
		return nil, err
	}
	var logs []models.NotificationLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, upstream("load notifications", err)
	}
	return buildPage(logs, req, func(n models.NotificationLog) (time.Time, string) { return n.SentAt, n.ID }), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if err := requireCaller(userID); err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.NotificationLog{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return 0, upstream("count notifications", err)
	}
	return count, nil
}

// MarkRead sets read_at once; marking an already read notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := requireCaller(userID); err != nil {
		return err
	}
	var log models.NotificationLog
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&log).Error; err != nil {
		return notFoundOr(ErrNotificationNotFound, "load notification", err)
	}
	if log.ReadAt != nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&log).Update("read_at", time.Now().UTC()).Error; err != nil {
		return upstream("update notification", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if err := requireCaller(userID); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Model(&models.NotificationLog{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now().UTC())
	if result.Error != nil {
		return 0, upstream("update notifications", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	var pref models.NotificationPreference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pref = models.DefaultNotificationPreference(userID)
		return &pref, nil
	}
	if err != nil {
		return nil, upstream("load preferences", err)
	}
	return &pref, nil
}

// PreferencesRequest updates only the categories that are present.
type PreferencesRequest struct {
	NewEvent     *bool `json:"new_event" form:"new_event"`
	Reminder     *bool `json:"reminder" form:"reminder"`
	Announcement *bool `json:"announcement" form:"announcement"`
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, req *PreferencesRequest) (*models.NotificationPreference, error) {
	pref, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.NewEvent != nil {
		pref.NewEvent = *req.NewEvent
	}
	if req.Reminder != nil {
		pref.Reminder = *req.Reminder
	}
	if req.Announcement != nil {
		pref.Announcement = *req.Announcement
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"new_event", "reminder", "announcement", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return nil, upstream("save preferences", err)
	}
	return pref, nil
}
