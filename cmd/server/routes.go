package main

import (
	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/storage"
	"github.com/yiback/gatherly/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.App.URL))

	authLimiter := middleware.NewRateLimiter(1, 5)
	internalLimiter := middleware.NewRateLimiter(internalSendRPS, internalSendBurst)
	view := middleware.CacheResponse(svc.cacheStore, viewCacheTTL)

	r.GET("/health", svc.health.CheckHealth)

	// Objects written by the local store are served from disk.
	if local, ok := svc.objects.(*storage.LocalStore); ok {
		r.Static("/uploads", local.Dir())
	}

	api := r.Group("/api")
	api.Use(middleware.AuditLog())
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.GET("/config", svc.auth.GetAuthConfig)
			auth.POST("/email-link", authLimiter.Middleware(), svc.auth.RequestEmailLink)
			auth.GET("/callback", authLimiter.Middleware(), svc.auth.Callback)
			auth.POST("/exchange", authLimiter.Middleware(), svc.auth.Exchange)
			auth.GET("/oauth/google", svc.auth.GoogleLogin)
			auth.GET("/oauth/callback", authLimiter.Middleware(), svc.auth.GoogleCallback)
		}

		api.GET("/push/public-key", svc.push.PublicKey)

		// Realtime feeds accept ?token= because browsers cannot set headers on them
		streams := api.Group("", middleware.OptionalAuth())
		{
			streams.GET("/events/:id/participants/stream", svc.participants.Stream)
			streams.GET("/events/:id/participants/ws", svc.participants.Socket)
		}

		// Server-to-server routes
		internal := api.Group("/internal", internalLimiter.Middleware(), middleware.InternalToken(svc.cfg.Internal.Token))
		{
			internal.POST("/push/send", svc.push.Send)
			internal.GET("/system-logs", svc.systemLogs.List)
		}

		protected := api.Group("", middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.auth.GetCurrentUser)

			// Profile
			protected.GET("/profile", view, svc.profile.Get)
			protected.PUT("/profile", svc.profile.Update)
			protected.POST("/profile/avatar", svc.profile.UploadAvatar)
			protected.DELETE("/profile/avatar", svc.profile.RemoveAvatar)

			// Groups
			protected.GET("/groups", view, svc.groups.List)
			protected.POST("/groups", svc.groups.Create)
			protected.POST("/groups/join", svc.groups.Join)
			protected.GET("/groups/:id", view, svc.groups.Get)
			protected.PUT("/groups/:id", svc.groups.Update)
			protected.DELETE("/groups/:id", svc.groups.Delete)
			protected.POST("/groups/:id/image", svc.groups.UploadImage)
			protected.DELETE("/groups/:id/image", svc.groups.RemoveImage)

			// Members
			protected.GET("/groups/:id/members", view, svc.members.List)
			protected.PUT("/groups/:id/members/:userId/role", svc.members.ChangeRole)
			protected.DELETE("/groups/:id/members/:userId", svc.members.Remove)
			protected.POST("/groups/:id/leave", svc.members.Leave)

			// Events
			protected.GET("/groups/:id/events", view, svc.events.ListByGroup)
			protected.POST("/groups/:id/events", svc.events.Create)
			protected.GET("/events/upcoming", view, svc.events.Upcoming)
			protected.GET("/events/:id", view, svc.events.Get)
			protected.PUT("/events/:id", svc.events.Update)
			protected.PATCH("/events/:id/status", svc.events.UpdateStatus)
			protected.DELETE("/events/:id", svc.events.Delete)

			// Participants
			protected.GET("/events/:id/participants", view, svc.participants.List)
			protected.GET("/events/:id/participants/stats", svc.participants.Stats)
			protected.PUT("/events/:id/participants/me", svc.participants.Respond)
			protected.DELETE("/events/:id/participants/me", svc.participants.Withdraw)

			// Event images
			protected.GET("/events/:id/images", view, svc.images.List)
			protected.POST("/events/:id/images", svc.images.Upload)
			protected.PUT("/events/:id/images/order", svc.images.Reorder)
			protected.DELETE("/events/:id/images/:imageId", svc.images.Delete)

			// Announcements
			protected.GET("/groups/:id/announcements", view, svc.announcements.ListByGroup)
			protected.GET("/events/:id/announcements", view, svc.announcements.ListByEvent)
			protected.POST("/announcements", svc.announcements.Create)
			protected.GET("/announcements/:id", view, svc.announcements.Get)
			protected.PUT("/announcements/:id", svc.announcements.Update)
			protected.DELETE("/announcements/:id", svc.announcements.Delete)

			// Push subscriptions
			protected.GET("/push/subscriptions", svc.push.List)
			protected.POST("/push/subscriptions", svc.push.Subscribe)
			protected.DELETE("/push/subscriptions", svc.push.Unsubscribe)

			// Notifications
			protected.GET("/notifications", svc.notifications.List)
			protected.GET("/notifications/unread-count", svc.notifications.UnreadCount)
			protected.GET("/notifications/preferences", svc.notifications.GetPreferences)
			protected.PUT("/notifications/preferences", svc.notifications.UpdatePreferences)
			protected.POST("/notifications/read-all", svc.notifications.MarkAllRead)
			protected.POST("/notifications/:id/read", svc.notifications.MarkRead)
		}
	}
}
