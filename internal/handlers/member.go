package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// GET /api/groups/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.memberService.List(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// PUT /api/groups/:id/members/:userId/role
func (h *MemberHandler) ChangeRole(c *gin.Context) {
	var req services.ChangeRoleRequest
	if !bind(c, &req) {
		return
	}

	member, err := h.memberService.ChangeRole(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("userId"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// DELETE /api/groups/:id/members/:userId
func (h *MemberHandler) Remove(c *gin.Context) {
	if err := h.memberService.Remove(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Leave removes the caller from the group
// POST /api/groups/:id/leave
func (h *MemberHandler) Leave(c *gin.Context) {
	if err := h.memberService.Leave(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Redirect(c, http.StatusOK, nil, "/groups")
}
