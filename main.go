package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"

	"adscan/config"
	"adscan/database"
	"adscan/handlers"
	"adscan/metrics"
	"adscan/models"
	"adscan/moderation"
	"adscan/report"
	"adscan/service"
	"adscan/severity"
)

var (
	mode           = flag.String("mode", "incremental", "Scan mode: incremental|priority|full|single|company|category")
	sinceHours     = flag.Int("hours", 24, "Lookback window in hours for incremental scans")
	limit          = flag.Int("limit", 500, "Candidate cap for priority/full/company/category scans")
	adID           = flag.Int64("ad", 0, "Ad id for single scans")
	companySlug    = flag.String("company", "", "Company slug for company scans")
	categorySlug   = flag.String("category", "", "Category slug for category scans")
	invalidateDays = flag.Int("invalidate-days", -1, "Invalidate cache entries older than N days and exit (0 clears everything)")
	serve          = flag.Bool("serve", false, "Run as a daemon with HTTP API and periodic incremental scans")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	metrics.Register()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	cache := database.NewCacheStore(db.GetDB(), cfg.CacheTTL)
	if err := cache.CreateScanCacheTable(); err != nil {
		log.Fatalf("Failed to create scan cache table: %v", err)
	}

	if *invalidateDays >= 0 {
		rows, err := cache.InvalidateOlderThan(*invalidateDays)
		if err != nil {
			log.Fatalf("Cache invalidation failed: %v", err)
		}
		fmt.Printf("Invalidated %d cache entries\n", rows)
		return
	}

	sink, err := report.NewSink(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize report sink: %v", err)
	}
	defer sink.Close()

	transport, err := moderation.NewClient(cfg)
	if err != nil {
		log.Fatalf("Invalid moderation service configuration: %v", err)
	}
	processor := service.NewBatchProcessor(cache, transport, cfg.BatchSize)
	lock := service.NewRunLock(cfg)
	orchestrator := service.NewOrchestrator(db, processor, sink, lock, cfg.CacheTTL)

	if *serve {
		runDaemon(cfg, db, cache, orchestrator)
		return
	}

	runReport, err := runScan(orchestrator)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	printSummary(runReport)
}

func runScan(orchestrator *service.Orchestrator) (*models.ScanRunReport, error) {
	ctx := context.Background()

	if *limit <= 0 {
		return nil, fmt.Errorf("-limit must be positive, got %d", *limit)
	}

	switch *mode {
	case "incremental":
		return orchestrator.ScanIncremental(ctx, *sinceHours)
	case "priority":
		return orchestrator.ScanPriority(ctx, *limit)
	case "full":
		return orchestrator.ScanFull(ctx, *limit)
	case "single":
		if *adID <= 0 {
			return nil, fmt.Errorf("single mode requires -ad")
		}
		return orchestrator.ScanSingle(ctx, *adID)
	case "company":
		if *companySlug == "" {
			return nil, fmt.Errorf("company mode requires -company")
		}
		return orchestrator.ScanByCompany(ctx, *companySlug, *limit)
	case "category":
		if *categorySlug == "" {
			return nil, fmt.Errorf("category mode requires -category")
		}
		return orchestrator.ScanByCategory(ctx, *categorySlug, *limit)
	}
	return nil, fmt.Errorf("unknown scan mode %q", *mode)
}

func printSummary(r *models.ScanRunReport) {
	fmt.Printf("Scan %s (%s) completed in %dms\n", r.RunID, r.Mode, r.ProcessingMs)
	if r.Degraded {
		fmt.Println("DEGRADED RUN: remote classifier unreachable, local rules only")
	}
	fmt.Printf("  scanned:      %d\n", r.Scanned)
	fmt.Printf("  cached skips: %d\n", r.CachedSkips)
	fmt.Printf("  clean:        %d\n", r.CleanCount)
	fmt.Printf("  critical:     %d\n", r.Severities.Critical)
	fmt.Printf("  high:         %d\n", r.Severities.High)
	fmt.Printf("  medium:       %d\n", r.Severities.Medium)
	fmt.Printf("  low:          %d\n", r.Severities.Low)
	fmt.Printf("  errors:       %d\n", len(r.Errors))
	if r.ProcessingMs > 0 && r.Scanned > 0 {
		fmt.Printf("  throughput:   %.1f ads/s\n", float64(r.Scanned)/(float64(r.ProcessingMs)/1000.0))
	}
	if len(r.Flagged) > 0 {
		fmt.Println("Flagged ads:")
		for _, f := range r.Flagged {
			fmt.Printf("  [%s] ad %d %q score=%d\n", severity.Label(f.Severity), f.AdID, f.Title, f.Verdict.Score)
		}
	}
}

func runDaemon(cfg *config.Config, db *database.Database, cache *database.CacheStore, orchestrator *service.Orchestrator) {
	scanService := service.NewScanService(orchestrator, cfg.PollInterval)
	h := handlers.NewHandlers(scanService, orchestrator, db, cache)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: h.SetupRouter(),
	}

	scanService.Start()

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	scanService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}
