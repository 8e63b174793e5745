package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-gateway/internal/identity"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/usecase"
)

func performMappedError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodPost, "/login", nil)

	RespondWithMappedError(c, err, authErrorCases(), http.StatusInternalServerError, "internal error")
	return rr
}

func TestRespondWithMappedErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid credential", usecase.ErrInvalidCredential, http.StatusUnauthorized},
		{"account locked", usecase.ErrAccountLocked, http.StatusLocked},
		{"inactive account", usecase.ErrInactiveAccount, http.StatusForbidden},
		{"unknown provider", identity.ErrUnknownProvider, http.StatusBadRequest},
		{"provider rejected", identity.ErrProviderRejected, http.StatusUnauthorized},
		{"provider unreachable", identity.ErrProviderUnreachable, http.StatusBadGateway},
		{"identity already linked", usecase.ErrIdentityAlreadyLinked, http.StatusConflict},
		{"duplicate username", usecase.ErrDuplicateUsername, http.StatusConflict},
		{"session expired", usecase.ErrSessionExpired, http.StatusUnauthorized},
		{"session not found", usecase.ErrSessionNotFound, http.StatusUnauthorized},
		{"user not found", usecase.ErrUserNotFound, http.StatusNotFound},
		{"unexpected error", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := performMappedError(t, tc.err)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestRespondWithMappedErrorUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("verify credentials: %w", usecase.ErrAccountLocked)

	rr := performMappedError(t, wrapped)
	if rr.Code != http.StatusLocked {
		t.Fatalf("expected status 423, got %d", rr.Code)
	}
}

func TestRespondWithMappedErrorReportsPasswordPolicy(t *testing.T) {
	policyErr := &security.PasswordValidationError{Message: "password must be at least 12 characters"}

	rr := performMappedError(t, policyErr)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}

	if resp.Error != policyErr.Message {
		t.Fatalf("expected policy message, got %q", resp.Error)
	}
}
