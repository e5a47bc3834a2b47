package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskpanel/internal/access"
	"taskpanel/internal/models"
)

func (h HandlerSet) ManageUsers(c *gin.Context) {
	list, err := h.users.Managed(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to fetch users.", nil)
		return
	}
	h.view(c, http.StatusOK, access.ViewManage, gin.H{"users": list}, nil)
}

func (h HandlerSet) ToggleUserStatus(c *gin.Context) {
	user, err := h.users.ToggleStatus(c.Request.Context(), currentSession(c).UserID(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to update user status.", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "notice": success("User status updated.")})
}

type changeRoleRequest struct {
	Role string `json:"role" form:"role" binding:"required"`
}

func (h HandlerSet) ChangeUserRole(c *gin.Context) {
	var req changeRoleRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, "Role must be user or manager.")
		return
	}

	user, err := h.users.ChangeRole(c.Request.Context(), currentSession(c).UserID(), c.Param("id"), models.UserRole(req.Role))
	if err != nil {
		h.respondError(c, err, "Failed to change user role.", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "notice": success("User role updated.")})
}

func (h HandlerSet) PermissionMatrix(c *gin.Context) {
	rows, err := h.users.Matrix(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to fetch users.", nil)
		return
	}
	h.view(c, http.StatusOK, access.ViewPermission, gin.H{
		"users": rows,
		"flags": models.PermissionFlags,
	}, nil)
}

func (h HandlerSet) TogglePermission(c *gin.Context) {
	flag := models.PermissionFlag(c.Param("flag"))
	rows, err := h.users.TogglePermission(c.Request.Context(), currentSession(c).UserID(), c.Param("id"), flag)
	if err != nil {
		h.respondError(c, err, "Failed to update permissions.", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": rows, "notice": success("Permissions updated.")})
}
