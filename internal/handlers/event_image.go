package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

type EventImageHandler struct {
	imageService *services.EventImageService
}

func NewEventImageHandler(imageService *services.EventImageService) *EventImageHandler {
	return &EventImageHandler{imageService: imageService}
}

// GET /api/events/:id/images
func (h *EventImageHandler) List(c *gin.Context) {
	images, err := h.imageService.List(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, images)
}

// POST /api/events/:id/images
func (h *EventImageHandler) Upload(c *gin.Context) {
	data, ok := readUpload(c, services.MaxImageBytes)
	if !ok {
		return
	}

	image, err := h.imageService.Upload(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, image)
}

// PUT /api/events/:id/images/order
func (h *EventImageHandler) Reorder(c *gin.Context) {
	var req services.ReorderImagesRequest
	if !bind(c, &req) {
		return
	}

	images, err := h.imageService.Reorder(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, images)
}

// DELETE /api/events/:id/images/:imageId
func (h *EventImageHandler) Delete(c *gin.Context) {
	if err := h.imageService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("imageId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
