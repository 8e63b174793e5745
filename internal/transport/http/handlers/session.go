package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-gateway/internal/transport/http/middleware"
	"github.com/arklim/auth-gateway/internal/usecase"
)

// SessionHandler exposes session management endpoints for the authenticated user.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session routes behind session authentication.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	auth := middleware.RequireSession(h.sessions)
	r.GET("/sessions", auth, h.list)
	r.GET("/sessions/current", auth, h.current)
	r.DELETE("/sessions/:id", auth, h.revoke)
}

// list returns the caller's live sessions, flagging the one backing this request.
func (h *SessionHandler) list(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.sessions.ListActive(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	currentID := ""
	if current, ok := middleware.GetSession(c); ok {
		currentID = current.ID
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payloads = append(payloads, newSessionPayload(session, session.ID == currentID))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: payloads, Total: len(payloads)})
}

// current reports the session backing this request.
func (h *SessionHandler) current(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, SessionValidateResponse{
		Valid:   true,
		Session: newSessionPayload(*session, true),
	})
}

// revoke terminates one of the caller's sessions by id.
func (h *SessionHandler) revoke(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session id is required"))
		return
	}

	err := h.sessions.RevokeByID(c.Request.Context(), userID, sessionID, usecase.RevokeReasonLogout)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
		}, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.Status(http.StatusNoContent)
}
