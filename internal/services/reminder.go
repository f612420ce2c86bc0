package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/pkg/logger"
	"gorm.io/gorm"
)

// ReminderScheduler enqueues one reminder per scheduled event once the event
// enters the lead window.
type ReminderScheduler struct {
	db            *gorm.DB
	queue         TaskQueue
	cfg           config.ReminderConfig
	cronScheduler *cron.Cron
}

func NewReminderScheduler(db *gorm.DB, queue TaskQueue, cfg config.ReminderConfig) *ReminderScheduler {
	return &ReminderScheduler{db: db, queue: queue, cfg: cfg}
}

func (s *ReminderScheduler) Start() error {
	if !s.cfg.Enabled {
		logger.Info().Msg("event reminders disabled")
		return nil
	}
	s.cronScheduler = cron.New()
	if _, err := s.cronScheduler.AddFunc(s.cfg.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx, time.Now()); err != nil {
			logger.Error().Err(err).Msg("reminder run failed")
		}
	}); err != nil {
		return err
	}
	s.cronScheduler.Start()
	logger.Info().Str("spec", s.cfg.Spec).Int("lead_hours", s.cfg.LeadHours).Msg("reminder scheduler started")
	return nil
}

func (s *ReminderScheduler) Stop() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// RunOnce claims every due event and enqueues its reminder. It returns the
// number of reminders enqueued. Claiming sets reminder_sent_at only while it
// is still empty, so concurrent runs never remind twice.
func (s *ReminderScheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	lead := time.Duration(s.cfg.LeadHours) * time.Hour

	var events []models.Event
	if err := s.db.WithContext(ctx).
		Select("id").
		Where("status = ? AND reminder_sent_at IS NULL AND date >= ? AND date <= ?",
			models.EventScheduled, now, now.Add(lead)).
		Find(&events).Error; err != nil {
		return 0, err
	}

	enqueued := 0
	for _, event := range events {
		result := s.db.WithContext(ctx).Model(&models.Event{}).
			Where("id = ? AND reminder_sent_at IS NULL", event.ID).
			UpdateColumn("reminder_sent_at", now)
		if result.Error != nil {
			logger.Warn().Err(result.Error).Str("event_id", event.ID).Msg("failed to claim reminder")
			continue
		}
		if result.RowsAffected != 1 {
			continue
		}
		enqueueNotification(s.queue, &NotificationTask{Kind: KindReminderDue, EventID: event.ID})
		enqueued++
	}
	return enqueued, nil
}
