package report

import (
	"testing"
	"time"

	"adscan/models"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	report := &models.ScanRunReport{
		RunID:       "run-1",
		Mode:        "incremental",
		StartedAt:   started,
		Scanned:     12,
		CachedSkips: 3,
		CleanCount:  10,
		Severities:  models.SeverityCounts{Critical: 1, Medium: 1, Low: 10},
		Flagged: []models.FlaggedAd{
			{AdID: 5, Title: "bad ad", Severity: 4, Verdict: models.ModerationVerdict{Safe: false, Score: 12}},
		},
		Degraded: false,
	}

	if err := sink.Save(report); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := sink.Load(started)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load: report not found")
	}
	if loaded.RunID != "run-1" || loaded.Scanned != 12 || len(loaded.Flagged) != 1 {
		t.Errorf("Load: round trip mismatch: %+v", loaded)
	}
}

func TestSaveOverwritesSameDay(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	started := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	first := &models.ScanRunReport{RunID: "run-a", Mode: "priority", StartedAt: started, Scanned: 1}
	second := &models.ScanRunReport{RunID: "run-b", Mode: "priority", StartedAt: started.Add(2 * time.Hour), Scanned: 9}

	if err := sink.Save(first); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := sink.Save(second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	loaded, err := sink.Load(started)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != "run-b" {
		t.Errorf("Load: run id = %q, want the latest run to win", loaded.RunID)
	}
}

func TestLoadMissingDay(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	loaded, err := sink.Load(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if loaded != nil {
		t.Errorf("Load: expected nil for a day without a report, got %+v", loaded)
	}
}
