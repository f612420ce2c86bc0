package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

type AnnouncementHandler struct {
	announcementService *services.AnnouncementService
}

func NewAnnouncementHandler(announcementService *services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService}
}

// announcementLocation points at the view that lists the announcement.
func announcementLocation(a *models.Announcement) string {
	if a.EventID != nil {
		return eventLocation(*a.EventID)
	}
	if a.GroupID != nil {
		return groupLocation(*a.GroupID) + "/announcements"
	}
	return "/"
}

// GET /api/groups/:id/announcements
func (h *AnnouncementHandler) ListByGroup(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}

	page, err := h.announcementService.ListByGroup(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// GET /api/events/:id/announcements
func (h *AnnouncementHandler) ListByEvent(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}

	page, err := h.announcementService.ListByEvent(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// GET /api/announcements/:id
func (h *AnnouncementHandler) Get(c *gin.Context) {
	announcement, err := h.announcementService.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, announcement)
}

// Create posts to a group, an event, or both, per group_id and event_id in the body
// POST /api/announcements
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req services.AnnouncementRequest
	if !bind(c, &req) {
		return
	}

	announcement, err := h.announcementService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusCreated, announcement, announcementLocation(announcement))
}

// PUT /api/announcements/:id
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req services.AnnouncementRequest
	if !bind(c, &req) {
		return
	}

	announcement, err := h.announcementService.Update(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, announcement, announcementLocation(announcement))
}

// DELETE /api/announcements/:id
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	announcement, err := h.announcementService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, nil, announcementLocation(announcement))
}
