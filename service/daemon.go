package service

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"adscan/models"
)

// ScanService runs periodic incremental scans in daemon mode.
type ScanService struct {
	orchestrator *Orchestrator
	interval     time.Duration

	mu         sync.RWMutex
	running    bool
	lastReport *models.ScanRunReport

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScanService creates the periodic scanner.
func NewScanService(orchestrator *Orchestrator, interval time.Duration) *ScanService {
	return &ScanService{
		orchestrator: orchestrator,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the scan loop.
func (s *ScanService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn("Scan service is already running")
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Infof("Starting scan service with poll interval %v", s.interval)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the scan loop and waits for an in-flight scan to finish.
func (s *ScanService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Info("Stopping scan service...")
	close(s.stopChan)
	s.wg.Wait()
}

func (s *ScanService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			log.Info("Scan service stopped")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *ScanService) runOnce() {
	// Look back a bit further than one interval so nothing falls between
	// two ticks.
	sinceHours := int(s.interval/time.Hour) + 1

	report, err := s.orchestrator.ScanIncremental(context.Background(), sinceHours)
	if err != nil {
		log.WithError(err).Error("Periodic incremental scan failed")
		return
	}

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()
}

// IsRunning reports whether the loop is active.
func (s *ScanService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LastReport returns the most recent periodic run report, or nil.
func (s *ScanService) LastReport() *models.ScanRunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}
