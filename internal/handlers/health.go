package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database and background machinery.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.ParticipantHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.ParticipantHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// CheckHealth returns 503 when the database is unreachable.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "gatherly",
		"components": gin.H{
			"database":        dbStatus,
			"queue_mode":      queueMode,
			"realtime_events": h.hub.EventCount(),
		},
	})
}
