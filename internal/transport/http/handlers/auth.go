package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/infra/telemetry"
	"github.com/arklim/auth-gateway/internal/transport/http/middleware"
	"github.com/arklim/auth-gateway/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *usecase.SessionService
	metrics  *telemetry.Provider
}

// NewAuthHandler constructs AuthHandler. metrics may be nil.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, metrics *telemetry.Provider) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, metrics: metrics}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.GET("/providers", h.providers)
	r.POST("/refresh", middleware.RequireSession(h.sessions), h.refresh)
	r.POST("/logout", middleware.RequireSession(h.sessions), h.logout)
	r.POST("/logout-all", middleware.RequireSession(h.sessions), h.logoutAll)
}

// login authenticates a caller. Credentials arrive either as a JSON payload
// (local schemes and external provider callbacks) or as an RFC 7617 Basic or
// RFC 7616 Digest Authorization header.
func (h *AuthHandler) login(c *gin.Context) {
	req, ok := h.buildAuthRequest(c)
	if !ok {
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), req)
	if err != nil {
		h.metrics.ObserveLogin(req.Provider, "failure")
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "authentication failed")
		return
	}
	h.metrics.ObserveLogin(req.Provider, "success")

	c.JSON(http.StatusOK, LoginResponse{
		SessionToken: result.Token,
		TokenType:    "Bearer",
		ExpiresAt:    result.Session.ExpiresAt,
		User:         newUserSummary(result.User, result.Roles),
		Session:      newSessionSummary(result.Session),
	})
}

func (h *AuthHandler) buildAuthRequest(c *gin.Context) (usecase.AuthRequest, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		switch {
		case strings.HasPrefix(header, "Basic "):
			return h.basicRequest(c, header)
		case strings.HasPrefix(header, "Digest "):
			return h.digestRequest(c, header)
		}
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return usecase.AuthRequest{}, false
	}

	provider := strings.TrimSpace(strings.ToLower(req.Provider))
	if provider == "" {
		provider = usecase.SchemeCredentials
	}

	authReq := usecase.AuthRequest{
		Provider: provider,
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		Callback: port.CallbackPayload{
			Code:        req.Code,
			State:       req.State,
			RedirectURI: req.RedirectURI,
		},
	}

	switch provider {
	case usecase.SchemeCredentials, usecase.SchemeBasic:
		if authReq.Username == "" || authReq.Password == "" {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
			return usecase.AuthRequest{}, false
		}
	case usecase.SchemeDigest:
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "digest authentication requires an Authorization header"))
		return usecase.AuthRequest{}, false
	default:
		if req.Code == "" {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "authorization code is required"))
			return usecase.AuthRequest{}, false
		}
	}

	return authReq, true
}

func (h *AuthHandler) basicRequest(c *gin.Context, header string) (usecase.AuthRequest, bool) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed basic authorization header"))
		return usecase.AuthRequest{}, false
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found || username == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed basic authorization header"))
		return usecase.AuthRequest{}, false
	}

	return usecase.AuthRequest{
		Provider: usecase.SchemeBasic,
		Username: username,
		Password: password,
	}, true
}

func (h *AuthHandler) digestRequest(c *gin.Context, header string) (usecase.AuthRequest, bool) {
	proof, err := security.ParseDigestAuthorization(header, c.Request.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed digest authorization header"))
		return usecase.AuthRequest{}, false
	}

	return usecase.AuthRequest{
		Provider: usecase.SchemeDigest,
		Username: proof.Username,
		Digest:   &proof,
	}, true
}

// providers lists the registered external identity providers.
func (h *AuthHandler) providers(c *gin.Context) {
	c.JSON(http.StatusOK, ProviderListResponse{Providers: h.auth.Providers()})
}

// refresh extends a rolling session. Fixed-lifetime sessions validate but
// keep their expiry.
func (h *AuthHandler) refresh(c *gin.Context) {
	token, ok := middleware.GetSessionToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	session, err := h.sessions.Refresh(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "failed to refresh session")
		return
	}

	c.JSON(http.StatusOK, SessionRefreshResponse{Session: newSessionPayload(*session, true)})
}

// logout revokes the caller's session.
func (h *AuthHandler) logout(c *gin.Context) {
	token, ok := middleware.GetSessionToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.sessions.Revoke(c.Request.Context(), token, usecase.RevokeReasonLogout); err != nil {
		RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.Status(http.StatusNoContent)
}

// logoutAll revokes every live session of the caller.
func (h *AuthHandler) logoutAll(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	revoked, err := h.sessions.RevokeAll(c.Request.Context(), userID, usecase.RevokeReasonLogoutAll)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, SessionBulkRevokeResponse{RevokedCount: revoked})
}
