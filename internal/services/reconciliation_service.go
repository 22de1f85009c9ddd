package services

import (
	"context"
	"sync/atomic"
	"time"

	"chainvault-backend/internal/orchestrator"

	"github.com/sirupsen/logrus"
)

// ReconciliationService periodically fails pending operations whose
// confirmation never arrived, releasing the funds the vault still counts
// as allocated
type ReconciliationService struct {
	orch          *orchestrator.Orchestrator
	checkInterval time.Duration
	running       atomic.Bool
	stopCh        chan struct{}
	log           *logrus.Entry
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(orch *orchestrator.Orchestrator, checkInterval time.Duration) *ReconciliationService {
	if checkInterval == 0 {
		checkInterval = time.Minute
	}
	return &ReconciliationService{
		orch:          orch,
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
		log:           logrus.WithField("component", "reconciliation"),
	}
}

// Start begins the sweep loop. Safe to call concurrently; only the first
// call spawns the loop.
func (s *ReconciliationService) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.log.WithField("check_interval", s.checkInterval.String()).Info("Reconciliation service started")
	go s.sweepLoop()
}

// Stop gracefully stops the sweep loop. Safe to call concurrently; the
// stop channel closes exactly once.
func (s *ReconciliationService) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.log.Info("Reconciliation service stopped")
}

func (s *ReconciliationService) sweepLoop() {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *ReconciliationService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.orch.SweepExpired(ctx)
	if err != nil {
		// Busy means a mutating call holds the engine; retry next tick.
		s.log.WithError(err).Debug("Reconciliation sweep skipped")
		return
	}
	if len(expired) > 0 {
		s.log.WithFields(logrus.Fields{
			"count":       len(expired),
			"message_ids": expired,
		}).Warn("Expired pending operations failed")
	}
}
