package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthStatusReportsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	handler := NewHealthHandler(nil)
	router.GET("/healthz", handler.Status)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadyReportsDegradedOnFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	checks := map[string]DependencyChecker{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}

	router := gin.New()
	handler := NewHealthHandler(checks)
	router.GET("/readyz", handler.Ready)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var resp ReadyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}

	if resp.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", resp.Status)
	}

	if resp.Checks["database"] != "ok" {
		t.Fatalf("expected database check ok, got %q", resp.Checks["database"])
	}
}
