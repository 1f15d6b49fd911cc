package service

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"

	"adscan/metrics"
	"adscan/models"
	"adscan/moderation"
	"adscan/severity"
)

// Moderator abstracts the dual-channel moderation transport.
type Moderator interface {
	Moderate(ctx context.Context, request *models.ModerationRequest, onProgress moderation.ProgressFunc) (*models.ModerationVerdict, error)
}

// VerdictCache abstracts the scan cache consulted before and written after
// every classification.
type VerdictCache interface {
	Get(adID int64) (*models.CacheEntry, error)
	CanSkip(entry *models.CacheEntry) bool
	Upsert(adID int64, verdict *models.ModerationVerdict, contentHash string, isClean bool) error
}

// RunStats aggregates the outcome of processing one candidate set. Chunk
// statistics are merged into run totals after every chunk.
type RunStats struct {
	Scanned        int
	CachedSkips    int
	CleanCount     int
	Severities     models.SeverityCounts
	Flagged        []models.FlaggedAd
	Errors         []models.ItemError
	LocalFallbacks int
}

func (s *RunStats) merge(other *RunStats) {
	s.Scanned += other.Scanned
	s.CachedSkips += other.CachedSkips
	s.CleanCount += other.CleanCount
	s.Severities.Critical += other.Severities.Critical
	s.Severities.High += other.Severities.High
	s.Severities.Medium += other.Severities.Medium
	s.Severities.Low += other.Severities.Low
	s.Flagged = append(s.Flagged, other.Flagged...)
	s.Errors = append(s.Errors, other.Errors...)
	s.LocalFallbacks += other.LocalFallbacks
}

func (s *RunStats) countSeverity(level int) {
	switch level {
	case severity.Critical:
		s.Severities.Critical++
	case severity.High:
		s.Severities.High++
	case severity.Medium:
		s.Severities.Medium++
	case severity.Low:
		s.Severities.Low++
	}
}

// BatchProcessor drives a candidate list through the moderation transport in
// fixed-size chunks with per-item failure isolation.
type BatchProcessor struct {
	cache     VerdictCache
	transport Moderator
	local     *moderation.LocalClassifier
	batchSize int
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(cache VerdictCache, transport Moderator, batchSize int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BatchProcessor{
		cache:     cache,
		transport: transport,
		local:     moderation.NewLocalClassifier(),
		batchSize: batchSize,
	}
}

// chunkBounds splits a candidate set of the given size into [start, end)
// index pairs of at most size items each.
func chunkBounds(total, size int) [][2]int {
	var bounds [][2]int
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}

// Process runs the whole candidate set. Every candidate is accounted for
// exactly once: scanned + cached skips always equals the candidate-set size.
func (p *BatchProcessor) Process(ctx context.Context, candidates []models.AdRecord) *RunStats {
	stats := &RunStats{}

	for _, b := range chunkBounds(len(candidates), p.batchSize) {
		chunk := candidates[b[0]:b[1]]

		chunkStats := &RunStats{}
		for i := range chunk {
			p.processAd(ctx, &chunk[i], chunkStats)
		}
		stats.merge(chunkStats)

		log.Infof("Batch %d-%d complete: scanned=%d skipped=%d flagged=%d errors=%d",
			b[0], b[1], chunkStats.Scanned, chunkStats.CachedSkips, len(chunkStats.Flagged), len(chunkStats.Errors))
	}

	return stats
}

// processAd handles one candidate. Failures are recorded and never abort the
// chunk or the run.
func (p *BatchProcessor) processAd(ctx context.Context, ad *models.AdRecord, stats *RunStats) {
	if ad.ID == 0 || ad.Title == "" {
		stats.Scanned++
		stats.Errors = append(stats.Errors, models.ItemError{AdID: ad.ID, Reason: "malformed ad record"})
		metrics.ItemErrorsTotal.Inc()
		log.Warnf("Skipping malformed ad record (id=%d)", ad.ID)
		return
	}

	entry, err := p.cache.Get(ad.ID)
	if err != nil {
		// A cache read failure only costs a rescan.
		log.WithError(err).Warnf("Cache lookup failed for ad %d", ad.ID)
	}
	if p.cache.CanSkip(entry) {
		stats.CachedSkips++
		metrics.CacheSkipsTotal.Inc()
		return
	}

	stats.Scanned++

	request := models.RequestForAd(ad)
	verdict, err := p.transport.Moderate(ctx, &request, nil)
	if err != nil {
		if !errors.Is(err, moderation.ErrUnavailable) {
			stats.Errors = append(stats.Errors, models.ItemError{AdID: ad.ID, Reason: err.Error()})
			metrics.ItemErrorsTotal.Inc()
			return
		}
		// Both remote channels failed: classify locally and mark the run
		// degraded so consumers can discount confidence.
		verdict = p.local.Classify(&request)
		stats.LocalFallbacks++
		metrics.AdsScannedTotal.WithLabelValues("local").Inc()
	}

	level := severity.Classify(verdict)
	stats.countSeverity(level)
	metrics.SeverityTotal.WithLabelValues(severity.Label(level)).Inc()

	isClean := level == severity.Low && verdict.Safe
	if isClean {
		stats.CleanCount++
	} else {
		stats.Flagged = append(stats.Flagged, models.FlaggedAd{
			AdID:     ad.ID,
			Title:    ad.Title,
			Company:  ad.CompanySlug,
			Category: ad.Category,
			Severity: level,
			Verdict:  *verdict,
		})
		log.Warnf("Ad %d flagged with severity %s (score=%d)", ad.ID, severity.Label(level), verdict.Score)
	}

	if err := p.cache.Upsert(ad.ID, verdict, ad.ContentHash(), isClean); err != nil {
		stats.Errors = append(stats.Errors, models.ItemError{AdID: ad.ID, Reason: "cache write failed: " + err.Error()})
		metrics.ItemErrorsTotal.Inc()
	}
}

// processingTime is a small helper for run reports.
func processingTime(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
