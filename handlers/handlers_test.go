package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"adscan/service"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	scanService := service.NewScanService(nil, 0)
	h := NewHandlers(scanService, nil, nil, nil)

	router := gin.New()
	api := router.Group("/api/v1")
	api.GET("/health", h.HealthCheck)
	api.POST("/scan", h.TriggerScan)
	return router
}

func TestHealthCheck(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("health body = %s", w.Body.String())
	}
}

func TestTriggerScanRejectsUnknownMode(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(`{"mode":"sideways"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown mode", w.Code)
	}
}

func TestTriggerScanRequiresMode(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when mode is missing", w.Code)
	}
}
