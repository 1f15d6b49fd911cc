package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// AdRecord is a single ad as read from the ad store. The scanner never
// writes to ads; it only selects them for moderation.
type AdRecord struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CompanySlug string    `json:"company_slug"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Language    string    `json:"language"`
	MediaType   string    `json:"media_type,omitempty"`
	MediaURL    string    `json:"media_url,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContentHash derives a fingerprint for an ad used to detect silent edits
// between scans.
func (a *AdRecord) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(a.Title))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(a.ID, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// Risk levels a verdict may carry. Empty string means the classifier did not
// provide one (the local fallback never does).
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// ModerationVerdict is the typed classification result for one ad. Immutable
// once produced.
type ModerationVerdict struct {
	Safe           bool               `json:"safe"`
	Score          int                `json:"score"` // 0..100, higher is safer
	RiskLevel      string             `json:"risk_level,omitempty"`
	Flags          []string           `json:"flags,omitempty"`
	Issues         []string           `json:"issues,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	ProcessingMs   int64              `json:"processing_ms"`
	AuditID        string             `json:"audit_id,omitempty"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
}

// CacheEntry is one row of the scan cache, keyed by ad id. Overwritten on
// every scan, deleted only by explicit invalidation.
type CacheEntry struct {
	AdID        int64     `json:"ad_id"`
	LastScanned time.Time `json:"last_scanned"`
	Verdict     string    `json:"verdict"` // serialized ModerationVerdict
	ContentHash string    `json:"content_hash"`
	IsClean     bool      `json:"is_clean"`
}

// FlaggedAd pairs an ad summary with the verdict and severity that flagged it.
type FlaggedAd struct {
	AdID     int64             `json:"ad_id"`
	Title    string            `json:"title"`
	Company  string            `json:"company,omitempty"`
	Category string            `json:"category,omitempty"`
	Severity int               `json:"severity"`
	Verdict  ModerationVerdict `json:"verdict"`
}

// SeverityCounts is the per-severity histogram of a run.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// ItemError records a per-ad failure that did not abort the run.
type ItemError struct {
	AdID   int64  `json:"ad_id"`
	Reason string `json:"reason"`
}

// ScanRunReport is the structured result of one orchestrator invocation.
type ScanRunReport struct {
	RunID        string         `json:"run_id"`
	Mode         string         `json:"mode"`
	StartedAt    time.Time      `json:"started_at"`
	Scanned      int            `json:"scanned"`
	CachedSkips  int            `json:"cached_skips"`
	CleanCount   int            `json:"clean_count"`
	Severities   SeverityCounts `json:"severities"`
	Flagged      []FlaggedAd    `json:"flagged"`
	Errors       []ItemError    `json:"errors,omitempty"`
	Degraded     bool           `json:"degraded"`
	ProcessingMs int64          `json:"processing_ms"`
}

// ModerationRequest is the payload sent to the remote moderation service.
type ModerationRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Language    string         `json:"language"`
	Media       []MediaRef     `json:"media,omitempty"`
	User        RequestUser    `json:"user"`
	Context     RequestContext `json:"context"`
}

// MediaRef points at one media attachment of an ad.
type MediaRef struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// RequestUser identifies the ad owner for the moderation service.
type RequestUser struct {
	ID      string `json:"id"`
	Company string `json:"company"`
}

// RequestContext carries scan provenance.
type RequestContext struct {
	AdID   int64  `json:"ad_id"`
	Source string `json:"source"`
	IP     string `json:"ip,omitempty"`
}

// HasVideo reports whether the request carries video media, which gets a
// longer synchronous timeout.
func (r *ModerationRequest) HasVideo() bool {
	for _, m := range r.Media {
		if m.Type == "video" {
			return true
		}
	}
	return false
}

// RequestForAd builds the moderation request for one ad record.
func RequestForAd(ad *AdRecord) ModerationRequest {
	req := ModerationRequest{
		Title:       ad.Title,
		Description: ad.Description,
		Category:    ad.Category,
		Language:    ad.Language,
		User: RequestUser{
			ID:      ad.UserID,
			Company: ad.CompanySlug,
		},
		Context: RequestContext{
			AdID:   ad.ID,
			Source: "adscan",
		},
	}
	if ad.MediaURL != "" {
		req.Media = append(req.Media, MediaRef{Type: ad.MediaType, URL: ad.MediaURL})
	}
	return req
}
