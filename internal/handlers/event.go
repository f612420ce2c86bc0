package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

const defaultUpcomingLimit = 10

type EventHandler struct {
	eventService *services.EventService
}

func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func eventLocation(id string) string {
	return "/events/" + id
}

// GET /api/groups/:id/events
func (h *EventHandler) ListByGroup(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}

	page, err := h.eventService.ListByGroup(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// Upcoming lists scheduled events across the caller's groups
// GET /api/events/upcoming
func (h *EventHandler) Upcoming(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultUpcomingLimit)))
	if err != nil {
		response.BadRequest(c, "limit: must be a number")
		return
	}

	events, err := h.eventService.ListUpcoming(c.Request.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, events)
}

// GET /api/events/:id
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.eventService.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, event)
}

// POST /api/groups/:id/events
func (h *EventHandler) Create(c *gin.Context) {
	var req services.EventRequest
	if !bind(c, &req) {
		return
	}

	event, err := h.eventService.Create(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusCreated, event, eventLocation(event.ID))
}

// PUT /api/events/:id
func (h *EventHandler) Update(c *gin.Context) {
	var req services.EventRequest
	if !bind(c, &req) {
		return
	}

	event, err := h.eventService.Update(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, event, eventLocation(event.ID))
}

// UpdateStatus is a toggle-style action and always answers with JSON
// PATCH /api/events/:id/status
func (h *EventHandler) UpdateStatus(c *gin.Context) {
	var req services.EventStatusRequest
	if !bind(c, &req) {
		return
	}

	event, err := h.eventService.UpdateStatus(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, event)
}

// DELETE /api/events/:id
func (h *EventHandler) Delete(c *gin.Context) {
	event, err := h.eventService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, nil, groupLocation(event.GroupID))
}
