package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"adscan/config"
	"adscan/models"
	"adscan/rabbitmq"
)

// Sink persists run reports as one JSON document per calendar day
// (latest-wins) and optionally fans flagged ads and the report out to
// RabbitMQ.
type Sink struct {
	dir               string
	publisher         *rabbitmq.Publisher
	flaggedRoutingKey string
	reportRoutingKey  string
}

// NewSink creates the report directory and, when configured, the RabbitMQ
// publisher. A broker failure is logged and fanout disabled; file persistence
// always works.
func NewSink(cfg *config.Config) (*Sink, error) {
	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", cfg.ReportDir, err)
	}

	s := &Sink{
		dir:               cfg.ReportDir,
		flaggedRoutingKey: cfg.FlaggedRoutingKey,
		reportRoutingKey:  cfg.ReportRoutingKey,
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, report fanout disabled")
		} else {
			s.publisher = publisher
		}
	}

	return s, nil
}

// NewFileSink is a fanout-less sink writing into dir (used by tests and the
// CLI when no broker is configured).
func NewFileSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	return &Sink{dir: dir}, nil
}

// Save writes the report to its per-day path and publishes it when fanout is
// enabled.
func (s *Sink) Save(report *models.ScanRunReport) error {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	path := s.PathFor(report.StartedAt)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	log.Infof("Saved run report %s to %s", report.RunID, path)

	if s.publisher != nil {
		if err := s.publisher.Publish(s.reportRoutingKey, report); err != nil {
			log.WithError(err).Warnf("Failed to publish run report %s", report.RunID)
		}
		for i := range report.Flagged {
			if err := s.publisher.Publish(s.flaggedRoutingKey, &report.Flagged[i]); err != nil {
				log.WithError(err).Warnf("Failed to publish flagged ad %d", report.Flagged[i].AdID)
			}
		}
	}

	return nil
}

// PathFor returns the per-day report path for a run start time.
func (s *Sink) PathFor(startedAt time.Time) string {
	return filepath.Join(s.dir, "scan-report-"+startedAt.UTC().Format("2006-01-02")+".json")
}

// Load reads back the persisted report for a given day, or nil when none
// exists.
func (s *Sink) Load(day time.Time) (*models.ScanRunReport, error) {
	body, err := os.ReadFile(s.PathFor(day))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}

	var report models.ScanRunReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}

// Close releases the publisher when fanout is enabled.
func (s *Sink) Close() error {
	if s.publisher != nil {
		return s.publisher.Close()
	}
	return nil
}
