package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

type PushHandler struct {
	subscriptionService *services.PushSubscriptionService
	notificationService *services.NotificationService
	vapidPublicKey      string
}

func NewPushHandler(subscriptionService *services.PushSubscriptionService, notificationService *services.NotificationService, vapidPublicKey string) *PushHandler {
	return &PushHandler{
		subscriptionService: subscriptionService,
		notificationService: notificationService,
		vapidPublicKey:      vapidPublicKey,
	}
}

// PublicKey returns the VAPID application server key browsers subscribe with
// GET /api/push/public-key
func (h *PushHandler) PublicKey(c *gin.Context) {
	response.Success(c, gin.H{
		"public_key": h.vapidPublicKey,
		"enabled":    h.vapidPublicKey != "",
	})
}

// GET /api/push/subscriptions
func (h *PushHandler) List(c *gin.Context) {
	subs, err := h.subscriptionService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subs)
}

// POST /api/push/subscriptions
func (h *PushHandler) Subscribe(c *gin.Context) {
	var req services.SubscribeRequest
	if !bind(c, &req) {
		return
	}

	sub, err := h.subscriptionService.Subscribe(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub)
}

// DELETE /api/push/subscriptions
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	var req services.UnsubscribeRequest
	if !bind(c, &req) {
		return
	}

	if err := h.subscriptionService.Unsubscribe(c.Request.Context(), middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Send runs a direct fan-out for a trusted backend and reports the outcome
// POST /api/internal/push/send
func (h *PushHandler) Send(c *gin.Context) {
	var req services.DirectNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.notificationService.SendDirect(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
