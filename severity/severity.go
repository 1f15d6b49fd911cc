package severity

import "adscan/models"

// Severity levels derived from a moderation verdict.
const (
	Low      = 1
	Medium   = 2
	High     = 3
	Critical = 4
)

// criticalFlags force severity 4 regardless of score when no risk level is
// present.
var criticalFlags = map[string]bool{
	"critical_keyword": true,
	"weapons":          true,
	"violence":         true,
	"drugs":            true,
	"illegal":          true,
}

// Classify maps a verdict to a severity level. The cascade is ordered and the
// first matching rule wins: an explicit risk level always short-circuits the
// score-based rules, even when the score looks benign.
func Classify(v *models.ModerationVerdict) int {
	switch v.RiskLevel {
	case models.RiskCritical:
		return Critical
	case models.RiskHigh:
		return High
	case models.RiskMedium:
		return Medium
	case models.RiskLow:
		return Low
	}

	for _, f := range v.Flags {
		if criticalFlags[f] {
			return Critical
		}
	}

	if !v.Safe {
		switch {
		case v.Score < 40:
			return Critical
		case v.Score < 60:
			return High
		default:
			return Medium
		}
	}

	if len(v.Warnings) > 0 || v.Score < 85 {
		return Medium
	}

	return Low
}

// Label returns the human-readable name for a severity level.
func Label(s int) string {
	switch s {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	}
	return "unknown"
}
