// Package scheduler runs the periodic refreshes.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/reconciler"
)

type Scheduler struct {
	cron       *cron.Cron
	reconciler *reconciler.Reconciler
	cfg        config.SyncConfig
	logger     logger.Logger
}

func New(rec *reconciler.Reconciler, cfg config.SyncConfig, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		reconciler: rec,
		cfg:        cfg,
		logger:     log,
	}
}

// Start registers the periodic jobs and starts the cron loop. Job failures
// are logged and retried on the next tick; the overlap guard in the
// reconciler keeps a slow run from stacking up with the next one.
func (s *Scheduler) Start() error {
	nsSpec := fmt.Sprintf("@every %s", s.cfg.NameserverInterval)
	if _, err := s.cron.AddFunc(nsSpec, s.runNameserverRefresh); err != nil {
		return fmt.Errorf("schedule nameserver refresh: %w", err)
	}

	filterSpec := fmt.Sprintf("@every %s", s.cfg.FilterInterval)
	if _, err := s.cron.AddFunc(filterSpec, s.runFilterCheck); err != nil {
		return fmt.Errorf("schedule filter check: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		logger.Duration("nameserver_interval", s.cfg.NameserverInterval),
		logger.Duration("filter_interval", s.cfg.FilterInterval),
	)
	return nil
}

func (s *Scheduler) runNameserverRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := s.reconciler.RefreshNameservers(ctx); err != nil {
		s.logger.Error("Scheduled nameserver refresh failed", logger.Error(err))
	}
}

func (s *Scheduler) runFilterCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := s.reconciler.RefreshContentFilterStatus(ctx); err != nil {
		s.logger.Error("Scheduled content filter check failed", logger.Error(err))
	}
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}
