package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

type GroupHandler struct {
	groupService *services.GroupService
}

func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func groupLocation(id string) string {
	return "/groups/" + id
}

// List returns the caller's groups
// GET /api/groups
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groupService.ListMine(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, groups)
}

// GET /api/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groupService.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, group)
}

// POST /api/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req services.GroupRequest
	if !bind(c, &req) {
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusCreated, group, groupLocation(group.ID))
}

// PUT /api/groups/:id
func (h *GroupHandler) Update(c *gin.Context) {
	var req services.GroupRequest
	if !bind(c, &req) {
		return
	}

	group, err := h.groupService.Update(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, group, groupLocation(group.ID))
}

// DELETE /api/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groupService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, nil, "/groups")
}

// Join redeems an invite code
// POST /api/groups/join
func (h *GroupHandler) Join(c *gin.Context) {
	var req services.JoinGroupRequest
	if !bind(c, &req) {
		return
	}

	group, err := h.groupService.JoinByCode(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, group, groupLocation(group.ID))
}

// POST /api/groups/:id/image
func (h *GroupHandler) UploadImage(c *gin.Context) {
	data, ok := readUpload(c, services.MaxImageBytes)
	if !ok {
		return
	}

	group, err := h.groupService.UploadImage(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, group)
}

// DELETE /api/groups/:id/image
func (h *GroupHandler) RemoveImage(c *gin.Context) {
	if err := h.groupService.RemoveImage(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
