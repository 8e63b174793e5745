package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/transport/http/middleware"
	"github.com/arklim/auth-gateway/internal/usecase"
)

// ProfileHandler exposes account management endpoints for the authenticated user.
type ProfileHandler struct {
	users    *usecase.UserService
	auth     *usecase.AuthService
	sessions *usecase.SessionService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(users *usecase.UserService, auth *usecase.AuthService, sessions *usecase.SessionService) *ProfileHandler {
	return &ProfileHandler{users: users, auth: auth, sessions: sessions}
}

// RegisterRoutes binds profile routes behind session authentication.
func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup) {
	auth := middleware.RequireSession(h.sessions)
	r.GET("/me", auth, h.profile)
	r.POST("/me/password", auth, h.changePassword)
	r.POST("/me/identities", auth, h.linkIdentity)
	r.DELETE("/me", auth, h.deleteAccount)
}

func (h *ProfileHandler) profile(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		User:       newUserSummary(profile.User, profile.Roles),
		Identities: newIdentityPayloads(profile.Identities),
	})
}

// changePassword rotates the caller's sessions: every existing session is
// revoked and the returned token replaces the one used for this request.
func (h *ProfileHandler) changePassword(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "current_password and new_password are required"))
		return
	}

	session, token, err := h.users.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:      "password changed",
		SessionToken: token,
		ExpiresAt:    session.ExpiresAt,
	})
}

func (h *ProfileHandler) linkIdentity(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req IdentityLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "provider and code are required"))
		return
	}

	err := h.auth.LinkIdentity(c.Request.Context(), userID, req.Provider, port.CallbackPayload{
		Code:        req.Code,
		State:       req.State,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "failed to link identity")
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "identity linked"})
}

func (h *ProfileHandler) deleteAccount(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.users.DeleteAccount(c.Request.Context(), userID); err != nil {
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "failed to delete account")
		return
	}

	c.Status(http.StatusNoContent)
}
