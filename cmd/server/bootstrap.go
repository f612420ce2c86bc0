package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/handlers"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/push"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/internal/storage"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/pkg/logger"
)

const (
	viewCacheTTL      = time.Minute
	authCleanupSpec   = "@hourly"
	redisPingTimeout  = 5 * time.Second
	internalSendRPS   = 5
	internalSendBurst = 20
)

// appServices holds the wired handlers and the background machinery that
// must be stopped on shutdown.
type appServices struct {
	cfg        *config.Config
	cacheStore cache.Store
	objects    storage.ObjectStore
	taskQueue  services.TaskQueue
	worker     *services.Worker
	reminders  *services.ReminderScheduler
	logCleanup *cron.Cron
	maintainer *cron.Cron
	hub        *services.ParticipantHub

	health        *handlers.HealthHandler
	auth          *handlers.AuthHandler
	groups        *handlers.GroupHandler
	members       *handlers.MemberHandler
	events        *handlers.EventHandler
	participants  *handlers.ParticipantHandler
	announcements *handlers.AnnouncementHandler
	images        *handlers.EventImageHandler
	profile       *handlers.ProfileHandler
	push          *handlers.PushHandler
	notifications *handlers.NotificationHandler
	systemLogs    *handlers.SystemLogHandler
}

func newCacheStore(cfg *config.Config) cache.Store {
	if !cfg.Redis.Enabled {
		logger.Info().Msg("response cache: in-memory")
		return cache.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	store, err := cache.NewRedisStore(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("response cache: Redis unavailable, using in-memory store")
		return cache.NewMemoryStore()
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("response cache: Redis")
	return store
}

func newPushSender(cfg *config.Config) push.Sender {
	if !cfg.PushEnabled() {
		logger.Warn().Msg("web push disabled: VAPID keys not configured")
		return push.Disabled{}
	}
	return push.NewWebPushSender(cfg.Push)
}

// bootstrap initializes the database, services, schedulers and handlers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	services.InitSystemLogger(db)
	logCleanup := services.StartLogCleanupScheduler(db)

	objects, err := storage.New(&cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize object storage: %v", err)
	}

	cacheStore := newCacheStore(cfg)
	invalidator := cache.NewPathInvalidator(cacheStore)
	hub := services.GetParticipantHub()

	notificationService := services.NewNotificationService(db, newPushSender(cfg), cfg.App.URL)

	// Redis-backed when enabled, otherwise processed in-process.
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notificationService.Process)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notificationService.Process)
			if err := worker.Start(); err != nil {
				logger.Fatalf("Failed to start notification worker: %v", err)
			}
		}
	}

	reminders := services.NewReminderScheduler(db, taskQueue, cfg.Reminder)
	if err := reminders.Start(); err != nil {
		logger.Fatalf("Failed to start reminder scheduler: %v", err)
	}

	profileService := services.NewProfileService(db, invalidator, objects, cfg)
	authService := services.NewAuthService(db, cfg, services.NewEmailService(cfg.Email), profileService)

	maintainer := cron.New()
	if _, err := maintainer.AddFunc(authCleanupSpec, func() {
		if err := authService.CleanupExpired(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("failed to clean up expired sign-in codes")
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule sign-in cleanup: %v", err)
	}
	maintainer.Start()

	groupService := services.NewGroupService(db, invalidator, objects, cfg)
	memberService := services.NewMemberService(db, invalidator)
	eventService := services.NewEventService(db, invalidator, taskQueue, objects, cfg)
	participantService := services.NewParticipantService(db, invalidator, hub)
	announcementService := services.NewAnnouncementService(db, invalidator, taskQueue)
	imageService := services.NewEventImageService(db, invalidator, objects, cfg)
	subscriptionService := services.NewPushSubscriptionService(db)

	return &appServices{
		cfg:        cfg,
		cacheStore: cacheStore,
		objects:    objects,
		taskQueue:  taskQueue,
		worker:     worker,
		reminders:  reminders,
		logCleanup: logCleanup,
		maintainer: maintainer,
		hub:        hub,

		health:        handlers.NewHealthHandler(db, taskQueue, hub),
		auth:          handlers.NewAuthHandler(authService, profileService, cfg.App.URL),
		groups:        handlers.NewGroupHandler(groupService),
		members:       handlers.NewMemberHandler(memberService),
		events:        handlers.NewEventHandler(eventService),
		participants:  handlers.NewParticipantHandler(participantService, hub, cfg.App.URL),
		announcements: handlers.NewAnnouncementHandler(announcementService),
		images:        handlers.NewEventImageHandler(imageService),
		profile:       handlers.NewProfileHandler(profileService),
		push:          handlers.NewPushHandler(subscriptionService, notificationService, cfg.Push.VAPIDPublicKey),
		notifications: handlers.NewNotificationHandler(notificationService),
		systemLogs:    handlers.NewSystemLogHandler(services.NewSystemLogService(db)),
	}
}

// shutdown stops schedulers first so no new work is queued, then drains the
// worker and closes the queue and cache.
func (s *appServices) shutdown() {
	s.reminders.Stop()
	<-s.maintainer.Stop().Done()
	<-s.logCleanup.Stop().Done()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close task queue")
		}
	}
	if err := s.cacheStore.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close cache store")
	}
}
