package moderation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"adscan/models"
)

// LocalClassifier is the conservative rule-based fallback used when no remote
// classifier is reachable. Keyword matching only, no ML signal, and it never
// sets a risk level, so downstream consumers can tell its verdicts apart.
type LocalClassifier struct{}

// NewLocalClassifier returns the keyword fallback classifier.
func NewLocalClassifier() *LocalClassifier {
	return &LocalClassifier{}
}

// Keyword lists per flag. The flag names match the ones the severity cascade
// treats as critical.
var criticalKeywords = map[string][]string{
	"weapons":  {"gun", "rifle", "pistol", "firearm", "ammunition", "explosive"},
	"violence": {"kill", "assault", "attack", "beat up"},
	"drugs":    {"cocaine", "heroin", "meth", "mdma", "opioid"},
	"illegal":  {"counterfeit", "stolen", "unlicensed", "forged"},
}

// Fixed evaluation order keeps the fallback verdict deterministic.
var criticalFlagOrder = []string{"weapons", "violence", "drugs", "illegal"}

var warningKeywords = []string{
	"miracle", "guaranteed", "risk-free", "get rich", "limited time", "cure",
}

// Classify produces a deterministic verdict from the ad text alone.
func (l *LocalClassifier) Classify(request *models.ModerationRequest) *models.ModerationVerdict {
	start := time.Now()
	text := strings.ToLower(request.Title + " " + request.Description)

	var flags, issues []string
	for _, flag := range criticalFlagOrder {
		for _, w := range criticalKeywords[flag] {
			if strings.Contains(text, w) {
				flags = append(flags, flag)
				issues = append(issues, "matched keyword: "+w)
				break
			}
		}
	}

	var warnings []string
	for _, w := range warningKeywords {
		if strings.Contains(text, w) {
			warnings = append(warnings, "suspicious wording: "+w)
		}
	}

	score := 95 - 25*len(flags) - 5*len(warnings)
	if score < 0 {
		score = 0
	}

	return &models.ModerationVerdict{
		Safe:         len(flags) == 0,
		Score:        score,
		Flags:        flags,
		Issues:       issues,
		Warnings:     warnings,
		AuditID:      "local-" + uuid.NewString(),
		ProcessingMs: time.Since(start).Milliseconds(),
	}
}
