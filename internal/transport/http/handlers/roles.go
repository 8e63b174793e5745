package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/transport/http/middleware"
	"github.com/arklim/auth-gateway/internal/usecase"
)

// AdminRoleName guards role management endpoints.
const AdminRoleName = "admin"

// RoleHandler exposes admin-only role assignment.
type RoleHandler struct {
	users    *usecase.UserService
	userRepo port.UserRepository
	sessions *usecase.SessionService
}

// NewRoleHandler constructs RoleHandler.
func NewRoleHandler(users *usecase.UserService, userRepo port.UserRepository, sessions *usecase.SessionService) *RoleHandler {
	return &RoleHandler{users: users, userRepo: userRepo, sessions: sessions}
}

// RegisterRoutes binds role routes behind session authentication and the admin role.
func (h *RoleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users/:id/roles",
		middleware.RequireSession(h.sessions),
		middleware.RequireRole(h.userRepo, AdminRoleName),
		h.assign,
	)
}

func (h *RoleHandler) assign(c *gin.Context) {
	targetID := c.Param("id")
	if targetID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user id is required"))
		return
	}

	var req RoleAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role is required"))
		return
	}

	if err := h.users.AssignRole(c.Request.Context(), targetID, req.Role); err != nil {
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "failed to assign role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role assigned"})
}
