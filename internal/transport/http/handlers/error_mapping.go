package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-gateway/internal/identity"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var policyErr *security.PasswordValidationError
	if errors.As(err, &policyErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// authErrorCases maps the authentication error taxonomy onto HTTP statuses.
func authErrorCases() []ErrorCase {
	return []ErrorCase{
		{Err: usecase.ErrInvalidCredential, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account temporarily locked"},
		{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account inactive"},
		{Err: identity.ErrUnknownProvider, Status: http.StatusBadRequest, Message: "unknown identity provider"},
		{Err: identity.ErrProviderRejected, Status: http.StatusUnauthorized, Message: "identity provider rejected the authorization"},
		{Err: identity.ErrProviderUnreachable, Status: http.StatusBadGateway, Message: "identity provider unreachable"},
		{Err: usecase.ErrIdentityAlreadyLinked, Status: http.StatusConflict, Message: "identity already linked to another account"},
		{Err: usecase.ErrDuplicateUsername, Status: http.StatusConflict, Message: "username already taken"},
		{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "session expired"},
		{Err: usecase.ErrSessionNotFound, Status: http.StatusUnauthorized, Message: "invalid session token"},
		{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	}
}
