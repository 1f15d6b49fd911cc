package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"adscan/models"
	"adscan/moderation"
)

type fakeSource struct {
	ads      []models.AdRecord
	lastCall string
}

func (s *fakeSource) GetAdsIncremental(sinceHours int, ttl time.Duration) ([]models.AdRecord, error) {
	s.lastCall = "incremental"
	return s.ads, nil
}

func (s *fakeSource) GetAdsPriority(limit int, ttl time.Duration) ([]models.AdRecord, error) {
	s.lastCall = "priority"
	if limit < len(s.ads) {
		return s.ads[:limit], nil
	}
	return s.ads, nil
}

func (s *fakeSource) GetAdsFull(limit int) ([]models.AdRecord, error) {
	s.lastCall = "full"
	if limit < len(s.ads) {
		return s.ads[:limit], nil
	}
	return s.ads, nil
}

func (s *fakeSource) GetAd(adID int64) (*models.AdRecord, error) {
	s.lastCall = "single"
	for i := range s.ads {
		if s.ads[i].ID == adID {
			return &s.ads[i], nil
		}
	}
	return nil, nil
}

func (s *fakeSource) GetAdsByCompany(slug string, limit int) ([]models.AdRecord, error) {
	s.lastCall = "company:" + slug
	return s.ads, nil
}

func (s *fakeSource) GetAdsByCategory(slug string, limit int) ([]models.AdRecord, error) {
	s.lastCall = "category:" + slug
	return s.ads, nil
}

type fakeSink struct {
	saved []*models.ScanRunReport
	err   error
}

func (s *fakeSink) Save(report *models.ScanRunReport) error {
	s.saved = append(s.saved, report)
	return s.err
}

func newTestOrchestrator(ads []models.AdRecord) (*Orchestrator, *fakeSource, *fakeSink) {
	source := &fakeSource{ads: ads}
	sink := &fakeSink{}
	processor := NewBatchProcessor(newFakeCache(), &fakeModerator{respond: cleanVerdict}, 100)
	return NewOrchestrator(source, processor, sink, nil, 24*time.Hour), source, sink
}

func TestScanIncrementalProducesReport(t *testing.T) {
	o, source, sink := newTestOrchestrator(makeAds(7))

	report, err := o.ScanIncremental(context.Background(), 24)
	if err != nil {
		t.Fatalf("ScanIncremental: unexpected error: %v", err)
	}
	if source.lastCall != "incremental" {
		t.Errorf("source call = %q, want incremental", source.lastCall)
	}
	if report.Mode != "incremental" {
		t.Errorf("report mode = %q, want incremental", report.Mode)
	}
	if report.RunID == "" {
		t.Error("report has no run id")
	}
	if report.Scanned+report.CachedSkips != 7 {
		t.Errorf("accounting: %d + %d != 7", report.Scanned, report.CachedSkips)
	}
	if len(sink.saved) != 1 || sink.saved[0] != report {
		t.Error("sink did not receive the returned report")
	}
}

func TestScanSingleMissingAd(t *testing.T) {
	o, _, sink := newTestOrchestrator(makeAds(2))

	if _, err := o.ScanSingle(context.Background(), 99); err == nil {
		t.Fatal("ScanSingle: expected an error for a missing ad")
	}
	if len(sink.saved) != 0 {
		t.Error("no report should be persisted for a failed selection")
	}
}

func TestScanSingleFound(t *testing.T) {
	o, _, _ := newTestOrchestrator(makeAds(3))

	report, err := o.ScanSingle(context.Background(), 2)
	if err != nil {
		t.Fatalf("ScanSingle: unexpected error: %v", err)
	}
	if report.Scanned != 1 {
		t.Errorf("Scanned = %d, want 1", report.Scanned)
	}
}

func TestScanDegradedFlagOnReport(t *testing.T) {
	source := &fakeSource{ads: makeAds(10)}
	sink := &fakeSink{}
	mod := &fakeModerator{respond: func(*models.ModerationRequest) (*models.ModerationVerdict, error) {
		return nil, fmt.Errorf("%w: all channels down", moderation.ErrUnavailable)
	}}
	processor := NewBatchProcessor(newFakeCache(), mod, 100)
	o := NewOrchestrator(source, processor, sink, nil, 24*time.Hour)

	report, err := o.ScanFull(context.Background(), 100)
	if err != nil {
		t.Fatalf("ScanFull: unexpected error: %v", err)
	}
	if !report.Degraded {
		t.Error("report.Degraded = false, want true when every ad used the local fallback")
	}
	if report.Scanned != 10 {
		t.Errorf("Scanned = %d, want 10", report.Scanned)
	}
}

func TestSinkFailureDoesNotDiscardRun(t *testing.T) {
	source := &fakeSource{ads: makeAds(3)}
	sink := &fakeSink{err: fmt.Errorf("disk full")}
	processor := NewBatchProcessor(newFakeCache(), &fakeModerator{respond: cleanVerdict}, 100)
	o := NewOrchestrator(source, processor, sink, nil, 24*time.Hour)

	report, err := o.ScanPriority(context.Background(), 10)
	if err != nil {
		t.Fatalf("ScanPriority: unexpected error: %v", err)
	}
	if report == nil || report.Scanned != 3 {
		t.Errorf("report = %+v, want a complete run despite the sink failure", report)
	}
}
