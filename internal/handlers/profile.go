package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profileService.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// PUT /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req services.ProfileRequest
	if !bind(c, &req) {
		return
	}

	profile, err := h.profileService.Update(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// POST /api/profile/avatar
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	data, ok := readUpload(c, services.MaxAvatarBytes)
	if !ok {
		return
	}

	profile, err := h.profileService.UploadAvatar(c.Request.Context(), middleware.GetUserID(c), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// DELETE /api/profile/avatar
func (h *ProfileHandler) RemoveAvatar(c *gin.Context) {
	profile, err := h.profileService.RemoveAvatar(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}
