package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

// SystemLogHandler exposes the audit trail to operators holding the internal token.
type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(systemLogService *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService}
}

// GET /api/internal/system-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}

	logs, err := h.systemLogService.List(&req)
	if err != nil {
		response.ServerError(c, "failed to load system logs")
		return
	}
	response.Success(c, logs)
}
