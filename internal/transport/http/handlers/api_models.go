package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-gateway/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	Status      domain.UserStatus `json:"status"`
	Email       *string           `json:"email,omitempty"`
	DisplayName *string           `json:"display_name,omitempty"`
	Roles       []string          `json:"roles,omitempty"`
}

// LoginRequest defines the payload for the login endpoint. Provider selects
// the flow: a credential scheme or an external provider name. Code, State, and
// RedirectURI carry the OAuth callback for external providers.
type LoginRequest struct {
	Provider    string `json:"provider"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
}

// SessionSummary provides a compact view of session context in login responses.
type SessionSummary struct {
	ID        string    `json:"id"`
	Rolling   bool      `json:"rolling"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// LoginResponse describes the response returned for a successful login. The
// session token appears here exactly once and cannot be recovered later.
type LoginResponse struct {
	SessionToken string         `json:"session_token"`
	TokenType    string         `json:"token_type"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         UserSummary    `json:"user"`
	Session      SessionSummary `json:"session"`
}

// ProviderListResponse enumerates the registered external identity providers.
type ProviderListResponse struct {
	Providers []string `json:"providers"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
	DisplayName string `json:"display_name"`
}

// RegistrationResponse contains the created account.
type RegistrationResponse struct {
	User    UserSummary `json:"user"`
	Message string      `json:"message,omitempty"`
}

// SessionPayload describes a session view in API responses.
type SessionPayload struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Rolling      bool       `json:"rolling"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSeen     time.Time  `json:"last_seen"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `json:"revoke_reason,omitempty"`
	IsActive     bool       `json:"is_active"`
	IsCurrent    bool       `json:"is_current,omitempty"`
}

// SessionListResponse wraps a list of sessions for a user.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// SessionValidateResponse conveys session validation results.
type SessionValidateResponse struct {
	Valid   bool           `json:"valid"`
	Session SessionPayload `json:"session"`
}

// SessionRefreshResponse returns the updated expiry after a refresh.
type SessionRefreshResponse struct {
	Session SessionPayload `json:"session"`
}

// SessionBulkRevokeResponse summarises bulk revocation operations.
type SessionBulkRevokeResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// ProfileResponse returns the caller's account with roles and linked identities.
type ProfileResponse struct {
	User       UserSummary       `json:"user"`
	Identities []IdentityPayload `json:"identities"`
}

// IdentityPayload describes a linked external identity.
type IdentityPayload struct {
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id"`
	LinkedAt   time.Time `json:"linked_at"`
}

// IdentityLinkRequest carries the provider callback for linking an additional
// external identity to the authenticated account.
type IdentityLinkRequest struct {
	Provider    string `json:"provider" binding:"required"`
	Code        string `json:"code" binding:"required"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
}

// PasswordChangeRequest captures a password change request body.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordChangeResponse conveys the result of a password change. A fresh
// session token replaces the caller's revoked one.
type PasswordChangeResponse struct {
	Message      string    `json:"message"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RoleAssignRequest assigns a role to a user.
type RoleAssignRequest struct {
	Role string `json:"role" binding:"required"`
}

// HelloResponse is the greeting payload.
type HelloResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserSummary converts a domain user to a summary suitable for API responses.
func newUserSummary(user domain.User, roles []string) UserSummary {
	summary := UserSummary{
		ID:       user.ID,
		Username: user.Username,
		Status:   user.Status,
	}

	if email := user.Email; email != "" {
		summary.Email = &email
	}
	if name := user.DisplayName; name != "" {
		summary.DisplayName = &name
	}

	if len(roles) > 0 {
		rolesCopy := make([]string, len(roles))
		copy(rolesCopy, roles)
		summary.Roles = rolesCopy
	}

	return summary
}

// newSessionPayload converts a domain session to an API session payload.
func newSessionPayload(session domain.Session, current bool) SessionPayload {
	return SessionPayload{
		ID:           session.ID,
		UserID:       session.UserID,
		Rolling:      session.Rolling,
		CreatedAt:    session.CreatedAt,
		LastSeen:     session.LastSeen,
		ExpiresAt:    session.ExpiresAt,
		RevokedAt:    session.RevokedAt,
		RevokeReason: session.RevokeReason,
		IsActive:     session.IsActive(time.Now().UTC()),
		IsCurrent:    current,
	}
}

func newSessionSummary(session domain.Session) SessionSummary {
	return SessionSummary{
		ID:        session.ID,
		Rolling:   session.Rolling,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
		LastSeen:  session.LastSeen,
	}
}

func newIdentityPayloads(identities []domain.ExternalIdentity) []IdentityPayload {
	payloads := make([]IdentityPayload, 0, len(identities))
	for _, identity := range identities {
		payloads = append(payloads, IdentityPayload{
			Provider:   identity.Provider,
			ExternalID: identity.ExternalID,
			LinkedAt:   identity.CreatedAt,
		})
	}
	return payloads
}
