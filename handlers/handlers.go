package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adscan/database"
	"adscan/service"
)

// Handlers exposes the HTTP surface of the scanner.
type Handlers struct {
	scanService  *service.ScanService
	orchestrator *service.Orchestrator
	db           *database.Database
	cache        *database.CacheStore
}

// NewHandlers creates the handler set.
func NewHandlers(scanService *service.ScanService, orchestrator *service.Orchestrator, db *database.Database, cache *database.CacheStore) *Handlers {
	return &Handlers{
		scanService:  scanService,
		orchestrator: orchestrator,
		db:           db,
		cache:        cache,
	}
}

// SetupRouter builds the gin router.
func (h *Handlers) SetupRouter() *gin.Engine {
	router := gin.Default()

	api := router.Group("/api/v1")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/status", h.GetStatus)
		api.POST("/scan", h.TriggerScan)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// HealthCheck returns service health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "adscan"})
}

// GetStatus returns scanner and cache statistics.
func (h *Handlers) GetStatus(c *gin.Context) {
	status := gin.H{
		"running": h.scanService.IsRunning(),
	}

	if report := h.scanService.LastReport(); report != nil {
		status["last_run"] = report
	}
	if total, flagged, err := h.cache.CountEntries(); err == nil {
		status["cache_entries"] = total
		status["flagged_entries"] = flagged
	}
	if count, err := h.db.CountActiveAds(); err == nil {
		status["active_ads"] = count
	}

	c.JSON(http.StatusOK, status)
}

// ScanRequest is the body of POST /api/v1/scan.
type ScanRequest struct {
	Mode     string `json:"mode" binding:"required"`
	Hours    int    `json:"hours"`
	Limit    int    `json:"limit"`
	AdID     int64  `json:"ad_id"`
	Company  string `json:"company"`
	Category string `json:"category"`
}

// TriggerScan runs one scan synchronously and returns its report.
func (h *Handlers) TriggerScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Hours <= 0 {
		req.Hours = 24
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	ctx := c.Request.Context()
	var (
		report interface{}
		err    error
	)
	switch req.Mode {
	case "incremental":
		report, err = h.orchestrator.ScanIncremental(ctx, req.Hours)
	case "priority":
		report, err = h.orchestrator.ScanPriority(ctx, req.Limit)
	case "full":
		report, err = h.orchestrator.ScanFull(ctx, req.Limit)
	case "single":
		report, err = h.orchestrator.ScanSingle(ctx, req.AdID)
	case "company":
		report, err = h.orchestrator.ScanByCompany(ctx, req.Company, req.Limit)
	case "category":
		report, err = h.orchestrator.ScanByCategory(ctx, req.Category, req.Limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scan mode: " + req.Mode})
		return
	}

	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}
