package financing

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/financing-engine/engine"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service exposes the financing operations against a Store. It is safe for
// concurrent use as long as the store is.
type Service struct {
	store  Store
	logger *zap.Logger
	seq    atomic.Uint64
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), s.seq.Add(1))
}

// =============================================================================
// APPLICATIONS
// =============================================================================

// CreateApplicationRequest carries everything needed to open an application
// and plan its installments in one step.
type CreateApplicationRequest struct {
	Customer         string
	Quotation        string
	TotalToFinance   decimal.Decimal
	Interest         decimal.Decimal
	Terms            Terms
	InstallmentCount int
	FirstDueDate     time.Time
}

// CreateApplication opens a draft application with a planned installment
// schedule.
func (s *Service) CreateApplication(ctx context.Context, req CreateApplicationRequest, now time.Time) (*Application, error) {
	app, err := NewApplication(ApplicationID(s.newID("FA")), req.Customer, req.Quotation, req.TotalToFinance, req.Interest, req.Terms, now)
	if err != nil {
		return nil, err
	}
	if err := app.PlanInstallments(req.InstallmentCount, req.FirstDueDate); err != nil {
		return nil, err
	}
	if err := s.store.SaveApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("saving application: %w", err)
	}

	s.logger.Info("application created",
		zap.String("application", string(app.ID)),
		zap.String("customer", app.Customer),
		zap.String("total", app.TotalToFinance.String()),
		zap.Int("installments", len(app.Installments)))
	return app, nil
}

// ApproveApplication approves a draft application and creates its schedule.
func (s *Service) ApproveApplication(ctx context.Context, id ApplicationID, now time.Time) (*Schedule, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule, err := app.Approve(ScheduleID(s.newID("PP")), now)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("saving approved application: %w", err)
	}
	if err := s.store.SaveSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("saving schedule: %w", err)
	}

	s.logger.Info("application approved",
		zap.String("application", string(app.ID)),
		zap.String("schedule", string(schedule.ID)))
	return schedule, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// CommitPayment records a payment on a schedule, reallocates, and persists
// the result. Invariant violations (over-allocation, continuity breaks)
// abort before anything is saved.
func (s *Service) CommitPayment(ctx context.Context, id ScheduleID, rec PaymentRecord, now time.Time) (*Schedule, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := schedule.AddPayment(rec); err != nil {
		return nil, err
	}
	signal, err := schedule.Recompute(now)
	if err != nil {
		if engine.IsInvariantViolation(err) {
			s.logger.Error("allocation invariant violated, payment rejected",
				zap.String("schedule", string(id)),
				zap.String("payment", rec.PaymentEntry),
				zap.Error(err))
		}
		return nil, err
	}

	if err := s.store.SaveSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("saving schedule: %w", err)
	}

	s.logger.Info("payment committed",
		zap.String("schedule", string(id)),
		zap.String("payment", rec.PaymentEntry),
		zap.String("amount", rec.Amount.String()),
		zap.String("continuity", signal.String()),
		zap.String("status", string(schedule.Status)))
	return schedule, nil
}

// SimulationLine is the principal/penalty split one installment would
// receive from a hypothetical payment.
type SimulationLine struct {
	InstallmentIndex int
	Principal        decimal.Decimal
	Penalty          decimal.Decimal
}

// Simulation is the outcome of a what-if payment: nothing is recorded.
type Simulation struct {
	Principal decimal.Decimal
	Penalty   decimal.Decimal
	Lines     []SimulationLine
}

// SimulatePayment previews how a payment of the given amount would split
// between principal and penalty across the schedule's installments.
func (s *Service) SimulatePayment(ctx context.Context, id ScheduleID, amount decimal.Decimal) (Simulation, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return Simulation{}, err
	}

	analysis, err := engine.AnalyzePayment(
		engine.ToCents(schedule.DownPaymentAmount),
		schedule.dues(),
		schedule.pool(),
		engine.ToCents(amount))
	if err != nil {
		return Simulation{}, err
	}

	sim := Simulation{
		Principal: engine.FromCents(analysis.Principal),
		Penalty:   engine.FromCents(analysis.Penalty),
	}
	for _, line := range analysis.Breakdown {
		sim.Lines = append(sim.Lines, SimulationLine{
			InstallmentIndex: line.InstallmentIndex,
			Principal:        engine.FromCents(line.PrincipalPayment),
			Penalty:          engine.FromCents(line.PenaltyPayment),
		})
	}
	return sim, nil
}

// =============================================================================
// OVERDUE REPORTING
// =============================================================================

// OverdueEntry is one schedule in the overdue report.
type OverdueEntry struct {
	ScheduleID    ScheduleID
	Customer      string
	TotalPending  decimal.Decimal
	OverdueCount  int
	OldestDueDate time.Time
	DaysOverdue   int
}

// OverdueReport lists open schedules with at least one overdue installment,
// most-overdue first.
func (s *Service) OverdueReport(ctx context.Context, asOf time.Time) ([]OverdueEntry, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}

	var report []OverdueEntry
	for _, schedule := range schedules {
		if !schedule.Open() {
			continue
		}
		oldest, ok := schedule.OldestOverdueDue(asOf)
		if !ok {
			continue
		}
		report = append(report, OverdueEntry{
			ScheduleID:    schedule.ID,
			Customer:      schedule.Customer,
			TotalPending:  schedule.OverduePending(asOf),
			OverdueCount:  schedule.overdueCount(asOf),
			OldestDueDate: oldest,
			DaysOverdue:   int(asOf.Sub(oldest).Hours() / 24),
		})
	}

	sort.Slice(report, func(i, j int) bool {
		return report[i].DaysOverdue > report[j].DaysOverdue
	})
	return report, nil
}

// =============================================================================
// PENALTY BATCH
// =============================================================================

// BatchSummary reports the outcome of a penalty accrual run.
type BatchSummary struct {
	Processed int
	Updated   int
	Failed    int
}

// RunPenaltyBatch accrues penalties across all open schedules. Each schedule
// is isolated: a failure is logged and counted, and the run continues.
func (s *Service) RunPenaltyBatch(ctx context.Context, cfg engine.PenaltyConfig, today time.Time) (BatchSummary, error) {
	if err := cfg.Validate(); err != nil {
		return BatchSummary{}, err
	}

	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return BatchSummary{}, err
	}

	var summary BatchSummary
	for _, schedule := range schedules {
		if !schedule.Open() {
			continue
		}
		summary.Processed++

		changed, err := s.accrueOne(ctx, schedule, cfg, today)
		if err != nil {
			summary.Failed++
			s.logger.Error("penalty accrual failed for schedule",
				zap.String("schedule", string(schedule.ID)),
				zap.Error(err))
			continue
		}
		if changed {
			summary.Updated++
		}
	}

	s.logger.Info("penalty batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *Service) accrueOne(ctx context.Context, schedule *Schedule, cfg engine.PenaltyConfig, today time.Time) (bool, error) {
	changed, err := schedule.AccruePenalties(cfg, today)
	if err != nil {
		return false, err
	}
	if changed == 0 {
		return false, nil
	}
	if _, err := schedule.Recompute(today); err != nil {
		return false, err
	}
	if err := s.store.SaveSchedule(ctx, schedule); err != nil {
		return false, err
	}
	return true, nil
}

// GetSchedule returns a schedule by ID.
func (s *Service) GetSchedule(ctx context.Context, id ScheduleID) (*Schedule, error) {
	return s.store.GetSchedule(ctx, id)
}

// GetApplication returns an application by ID.
func (s *Service) GetApplication(ctx context.Context, id ApplicationID) (*Application, error) {
	return s.store.GetApplication(ctx, id)
}

// ListApplications returns all applications.
func (s *Service) ListApplications(ctx context.Context) ([]*Application, error) {
	return s.store.ListApplications(ctx)
}

// ListSchedules returns all schedules.
func (s *Service) ListSchedules(ctx context.Context) ([]*Schedule, error) {
	return s.store.ListSchedules(ctx)
}
