/*
scheduler.go - Automated penalty accrual scheduler

PURPOSE:
  Runs the penalty accrual batch on a cron schedule (default daily) so
  overdue installments pick up their penalties without an operator calling
  the admin endpoint.

DESIGN:
  - robfig/cron drives the schedule; expressions like "@daily" or
    "0 3 * * *" come from configuration
  - Each run delegates to Service.RunPenaltyBatch, which isolates
    per-schedule failures itself
  - Start/Stop bracket the server lifecycle; Stop waits for a running
    batch to finish

USAGE:
  scheduler, err := NewPenaltyScheduler(service, penaltyCfg, "@daily", logger)
  scheduler.Start()
  // ... on shutdown
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunPenaltyBatch endpoint (manual trigger)
  - financing/service.go: the batch implementation
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/financing-engine/engine"
	"github.com/warp/financing-engine/financing"
)

// PenaltyScheduler runs the penalty accrual batch on a cron schedule.
type PenaltyScheduler struct {
	service *financing.Service
	penalty engine.PenaltyConfig
	logger  *zap.Logger
	cron    *cron.Cron
	entry   cron.EntryID
}

// NewPenaltyScheduler creates a scheduler from a cron expression.
func NewPenaltyScheduler(service *financing.Service, penalty engine.PenaltyConfig, schedule string, logger *zap.Logger) (*PenaltyScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ps := &PenaltyScheduler{
		service: service,
		penalty: penalty,
		logger:  logger,
		cron:    cron.New(),
	}

	entry, err := ps.cron.AddFunc(schedule, ps.runOnce)
	if err != nil {
		return nil, fmt.Errorf("bad penalty schedule %q: %w", schedule, err)
	}
	ps.entry = entry
	return ps, nil
}

// Start begins the scheduler.
func (ps *PenaltyScheduler) Start() {
	ps.cron.Start()
	ps.logger.Info("penalty scheduler started",
		zap.Time("next_run", ps.cron.Entry(ps.entry).Next))
}

// Stop stops the scheduler and waits for a running batch to finish.
func (ps *PenaltyScheduler) Stop() {
	ctx := ps.cron.Stop()
	<-ctx.Done()
	ps.logger.Info("penalty scheduler stopped")
}

// RunNow triggers an immediate batch (for testing/admin).
func (ps *PenaltyScheduler) RunNow() {
	ps.runOnce()
}

func (ps *PenaltyScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := ps.service.RunPenaltyBatch(ctx, ps.penalty, time.Now())
	if err != nil {
		ps.logger.Error("scheduled penalty batch failed", zap.Error(err))
		return
	}
	ps.logger.Info("scheduled penalty batch completed",
		zap.Int("processed", summary.Processed),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed))
}
