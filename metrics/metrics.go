package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AdsScannedTotal counts ads actually sent through a classifier, labeled by channel.
	AdsScannedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adscan",
		Subsystem: "scanner",
		Name:      "ads_scanned_total",
		Help:      "Total number of ads classified, labeled by channel (stream, sync, local).",
	}, []string{"channel"})

	// CacheSkipsTotal counts ads skipped because of a fresh clean cache entry.
	CacheSkipsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "adscan",
		Subsystem: "scanner",
		Name:      "cache_skips_total",
		Help:      "Total number of ads skipped due to a fresh clean cache entry.",
	})

	// SeverityTotal counts classified ads by severity label.
	SeverityTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adscan",
		Subsystem: "scanner",
		Name:      "severity_total",
		Help:      "Total number of classified ads by severity.",
	}, []string{"severity"})

	// ItemErrorsTotal counts per-ad failures that were isolated, not fatal.
	ItemErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "adscan",
		Subsystem: "scanner",
		Name:      "item_errors_total",
		Help:      "Total number of per-ad failures recorded during scans.",
	})

	// TransportFallbackTotal counts streaming attempts that fell back to the sync channel.
	TransportFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "adscan",
		Subsystem: "transport",
		Name:      "fallback_total",
		Help:      "Total number of moderation calls that fell back from streaming to sync.",
	})

	// DegradedRunsTotal counts runs where the local fallback classifier was used.
	DegradedRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "adscan",
		Subsystem: "scanner",
		Name:      "degraded_runs_total",
		Help:      "Total number of scan runs that used the local fallback classifier.",
	})

	// ScanDurationSeconds is end-to-end time per run, labeled by mode.
	ScanDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adscan",
		Subsystem: "scanner",
		Name:      "scan_duration_seconds",
		Help:      "End-to-end time for one scan run, labeled by mode.",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
	}, []string{"mode"})

	// LastRunTimestampSeconds is a unix timestamp (seconds) of the last completed run.
	LastRunTimestampSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "adscan",
		Subsystem: "scanner",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last completed scan run.",
	})
)

// Register registers scanner metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AdsScannedTotal,
			CacheSkipsTotal,
			SeverityTotal,
			ItemErrorsTotal,
			TransportFallbackTotal,
			DegradedRunsTotal,
			ScanDurationSeconds,
			LastRunTimestampSeconds,
		)
	})
}

func NowUnixSeconds() float64 {
	return float64(time.Now().Unix())
}
