package services

import (
	"context"
	"errors"
	"time"

	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ParticipantService struct {
	db      *gorm.DB
	members *MembershipService
	cache   cache.Invalidator
	hub     *ParticipantHub
	now     func() time.Time
}

func NewParticipantService(db *gorm.DB, invalidator cache.Invalidator, hub *ParticipantHub) *ParticipantService {
	return &ParticipantService{
		db:      db,
		members: NewMembershipService(db),
		cache:   invalidator,
		hub:     hub,
		now:     time.Now,
	}
}

type RespondRequest struct {
	Status models.AttendanceStatus `json:"status" form:"status" validate:"required,oneof=attending not_attending maybe"`
}

func participantsPath(eventID string) string {
	return eventPath(eventID) + "/participants"
}

func (s *ParticipantService) loadEvent(ctx context.Context, userID, eventID string) (*models.Event, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		return nil, notFoundOr(ErrEventNotFound, "load event", err)
	}
	if _, err := s.members.GetRole(ctx, event.GroupID, userID); err != nil {
		return nil, err
	}
	return &event, nil
}

// Respond records the caller's attendance, replacing any earlier answer.
//
// The capacity check counts other attending rows and then writes without a
// lock, so two concurrent "attending" answers at the limit can both succeed.
func (s *ParticipantService) Respond(ctx context.Context, userID, eventID string, req *RespondRequest) (*models.Participant, error) {
	event, err := s.loadEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}

	now := s.now()
	if event.DeadlinePassed(now) {
		return nil, ErrDeadlinePassed
	}

	if req.Status == models.Attending && event.MaxParticipants != nil {
		var attending int64
		if err := s.db.WithContext(ctx).Model(&models.Participant{}).
			Where("event_id = ? AND status = ? AND user_id <> ?", eventID, models.Attending, userID).
			Count(&attending).Error; err != nil {
			return nil, upstream("check capacity", err)
		}
		if attending >= int64(*event.MaxParticipants) {
			return nil, ErrEventFull
		}
	}

	var existing models.Participant
	err = s.db.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error
	changeType := ChangeUpdate
	if errors.Is(err, gorm.ErrRecordNotFound) {
		changeType = ChangeInsert
	} else if err != nil {
		return nil, upstream("save response", err)
	}

	participant := &models.Participant{
		EventID:     eventID,
		UserID:      userID,
		Status:      req.Status,
		RespondedAt: now.UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "responded_at"}),
	}).Create(participant).Error
	if err != nil {
		return nil, upstream("save response", err)
	}

	var saved models.Participant
	if err := s.db.WithContext(ctx).Preload("User").
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&saved).Error; err != nil {
		return nil, upstream("save response", err)
	}

	s.publish(changeType, saved)
	s.cache.Invalidate(ctx, eventPath(eventID), participantsPath(eventID))
	return &saved, nil
}

// Withdraw deletes the caller's response. The deadline applies here as well.
func (s *ParticipantService) Withdraw(ctx context.Context, userID, eventID string) error {
	event, err := s.loadEvent(ctx, userID, eventID)
	if err != nil {
		return err
	}
	if event.DeadlinePassed(s.now()) {
		return ErrDeadlinePassed
	}

	var existing models.Participant
	if err := s.db.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error; err != nil {
		return notFoundOr(ErrResponseNotFound, "withdraw response", err)
	}
	if err := s.db.WithContext(ctx).Delete(&existing).Error; err != nil {
		return upstream("withdraw response", err)
	}

	s.publish(ChangeDelete, existing)
	s.cache.Invalidate(ctx, eventPath(eventID), participantsPath(eventID))
	return nil
}

func (s *ParticipantService) publish(t ChangeType, p models.Participant) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(ParticipantChange{Type: t, EventID: p.EventID, Participant: p})
}

// List returns every response for the event in answer order.
func (s *ParticipantService) List(ctx context.Context, userID, eventID string) ([]models.Participant, error) {
	if _, err := s.loadEvent(ctx, userID, eventID); err != nil {
		return nil, err
	}
	var participants []models.Participant
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("event_id = ?", eventID).
		Order("responded_at ASC").
		Find(&participants).Error; err != nil {
		return nil, upstream("load participants", err)
	}
	return participants, nil
}

// Stats counts responses by status against the group's member count.
func (s *ParticipantService) Stats(ctx context.Context, userID, eventID string) (*utils.AttendanceStats, error) {
	event, err := s.loadEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status models.AttendanceStatus
		Count  int
	}
	if err := s.db.WithContext(ctx).Model(&models.Participant{}).
		Select("status, COUNT(*) AS count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, upstream("load attendance", err)
	}

	var counts utils.AttendanceCounts
	for _, row := range rows {
		switch row.Status {
		case models.Attending:
			counts.Attending = row.Count
		case models.NotAttending:
			counts.NotAttending = row.Count
		case models.Maybe:
			counts.Maybe = row.Count
		}
	}

	total, err := s.members.CountMembers(ctx, event.GroupID)
	if err != nil {
		return nil, upstream("load attendance", err)
	}
	members := int(total)
	stats := utils.CalculateAttendanceStats(counts, &members)
	return &stats, nil
}
