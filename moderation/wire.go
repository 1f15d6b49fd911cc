package moderation

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"adscan/models"
)

// wireVerdict is the verdict shape the remote moderation service speaks, both
// on the synchronous response body and inside streaming terminal frames.
type wireVerdict struct {
	Decision       string             `json:"decision"`
	RiskLevel      string             `json:"risk_level,omitempty"`
	GlobalScore    float64            `json:"global_score"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
	Flags          []string           `json:"flags,omitempty"`
	Reasons        []string           `json:"reasons,omitempty"`
	AuditID        string             `json:"audit_id,omitempty"`
}

const (
	decisionApprove = "approve"
	decisionReview  = "review"
	decisionBlock   = "block"
)

// toVerdict maps the wire verdict to the typed internal one. Reasons land in
// issues for blocked ads and in warnings for review-level ads, so the severity
// cascade sees them on the right rule.
func (w *wireVerdict) toVerdict(elapsed time.Duration) (*models.ModerationVerdict, error) {
	switch w.Decision {
	case decisionApprove, decisionReview, decisionBlock:
	default:
		return nil, fmt.Errorf("unknown decision %q in verdict", w.Decision)
	}

	v := &models.ModerationVerdict{
		Safe:           w.Decision == decisionApprove,
		Score:          int(math.Round(w.GlobalScore * 100)),
		RiskLevel:      w.RiskLevel,
		Flags:          w.Flags,
		AuditID:        w.AuditID,
		CategoryScores: w.CategoryScores,
		ProcessingMs:   elapsed.Milliseconds(),
	}
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 100 {
		v.Score = 100
	}

	switch w.Decision {
	case decisionBlock:
		v.Issues = w.Reasons
	case decisionReview:
		v.Warnings = w.Reasons
	}
	return v, nil
}

// streamFrame is one websocket message of a streaming session. Exactly one of
// partial/final/cached is set; any other combination is malformed.
type streamFrame struct {
	Partial bool            `json:"partial,omitempty"`
	Final   bool            `json:"final,omitempty"`
	Cached  bool            `json:"cached,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// ProgressFunc receives decoded progress-frame payloads during a streaming
// moderation call. It is never called with the terminal verdict.
type ProgressFunc func(status map[string]interface{})
