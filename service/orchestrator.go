package service

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"adscan/metrics"
	"adscan/models"
)

// AdSource abstracts candidate selection against the ad store.
type AdSource interface {
	GetAdsIncremental(sinceHours int, ttl time.Duration) ([]models.AdRecord, error)
	GetAdsPriority(limit int, ttl time.Duration) ([]models.AdRecord, error)
	GetAdsFull(limit int) ([]models.AdRecord, error)
	GetAd(adID int64) (*models.AdRecord, error)
	GetAdsByCompany(slug string, limit int) ([]models.AdRecord, error)
	GetAdsByCategory(slug string, limit int) ([]models.AdRecord, error)
}

// ReportSink persists a run report and hands it back to the caller.
type ReportSink interface {
	Save(report *models.ScanRunReport) error
}

// Orchestrator is the top-level entry point: selects candidates per mode and
// delegates to the batch processor. Dependencies are injected, never looked
// up globally.
type Orchestrator struct {
	source    AdSource
	processor *BatchProcessor
	sink      ReportSink
	lock      *RunLock
	ttl       time.Duration
}

// NewOrchestrator wires an orchestrator. lock may be nil, in which case
// concurrent runs are not guarded (the historical behavior).
func NewOrchestrator(source AdSource, processor *BatchProcessor, sink ReportSink, lock *RunLock, ttl time.Duration) *Orchestrator {
	return &Orchestrator{
		source:    source,
		processor: processor,
		sink:      sink,
		lock:      lock,
		ttl:       ttl,
	}
}

// ScanIncremental scans ads created or updated in the last sinceHours, plus
// every ad with a missing, expired or flagged cache entry.
func (o *Orchestrator) ScanIncremental(ctx context.Context, sinceHours int) (*models.ScanRunReport, error) {
	return o.run(ctx, "incremental", func() ([]models.AdRecord, error) {
		return o.source.GetAdsIncremental(sinceHours, o.ttl)
	})
}

// ScanPriority scans the same candidate set as incremental, capped at limit.
func (o *Orchestrator) ScanPriority(ctx context.Context, limit int) (*models.ScanRunReport, error) {
	return o.run(ctx, "priority", func() ([]models.AdRecord, error) {
		return o.source.GetAdsPriority(limit, o.ttl)
	})
}

// ScanFull scans all active ads up to limit.
func (o *Orchestrator) ScanFull(ctx context.Context, limit int) (*models.ScanRunReport, error) {
	return o.run(ctx, "full", func() ([]models.AdRecord, error) {
		return o.source.GetAdsFull(limit)
	})
}

// ScanSingle scans exactly one ad, immediately.
func (o *Orchestrator) ScanSingle(ctx context.Context, adID int64) (*models.ScanRunReport, error) {
	return o.run(ctx, "single", func() ([]models.AdRecord, error) {
		ad, err := o.source.GetAd(adID)
		if err != nil {
			return nil, err
		}
		if ad == nil {
			return nil, fmt.Errorf("ad %d not found or not active", adID)
		}
		return []models.AdRecord{*ad}, nil
	})
}

// ScanByCompany scans the active ads of one company.
func (o *Orchestrator) ScanByCompany(ctx context.Context, slug string, limit int) (*models.ScanRunReport, error) {
	return o.run(ctx, "company", func() ([]models.AdRecord, error) {
		return o.source.GetAdsByCompany(slug, limit)
	})
}

// ScanByCategory scans the active ads of one category.
func (o *Orchestrator) ScanByCategory(ctx context.Context, slug string, limit int) (*models.ScanRunReport, error) {
	return o.run(ctx, "category", func() ([]models.AdRecord, error) {
		return o.source.GetAdsByCategory(slug, limit)
	})
}

func (o *Orchestrator) run(ctx context.Context, mode string, selectCandidates func() ([]models.AdRecord, error)) (*models.ScanRunReport, error) {
	start := time.Now()

	if o.lock != nil {
		release, err := o.lock.Acquire(ctx, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to start %s scan: %w", mode, err)
		}
		defer release()
	}

	candidates, err := selectCandidates()
	if err != nil {
		return nil, fmt.Errorf("failed to select candidates for %s scan: %w", mode, err)
	}

	log.Infof("Starting %s scan over %d candidates", mode, len(candidates))
	stats := o.processor.Process(ctx, candidates)

	report := &models.ScanRunReport{
		RunID:        uuid.NewString(),
		Mode:         mode,
		StartedAt:    start.UTC(),
		Scanned:      stats.Scanned,
		CachedSkips:  stats.CachedSkips,
		CleanCount:   stats.CleanCount,
		Severities:   stats.Severities,
		Flagged:      stats.Flagged,
		Errors:       stats.Errors,
		Degraded:     stats.LocalFallbacks > 0,
		ProcessingMs: processingTime(start),
	}

	metrics.ScanDurationSeconds.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.LastRunTimestampSeconds.Set(metrics.NowUnixSeconds())
	if report.Degraded {
		metrics.DegradedRunsTotal.Inc()
		log.Warnf("Run %s completed in degraded mode: %d ads classified locally", report.RunID, stats.LocalFallbacks)
	}

	if err := o.sink.Save(report); err != nil {
		// The run itself succeeded; a sink failure must not discard it.
		log.WithError(err).Errorf("Failed to persist report for run %s", report.RunID)
	}

	log.Infof("Completed %s scan: scanned=%d skipped=%d flagged=%d errors=%d degraded=%v (%dms)",
		mode, report.Scanned, report.CachedSkips, len(report.Flagged), len(report.Errors),
		report.Degraded, report.ProcessingMs)
	return report, nil
}
