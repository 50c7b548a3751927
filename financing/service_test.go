package financing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/financing-engine/engine"
	"github.com/warp/financing-engine/financing"
	"github.com/warp/financing-engine/financing/store"
)

func newTestService(t *testing.T) (*financing.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return financing.NewService(mem, zaptest.NewLogger(t)), mem
}

// approvedSchedule drives a full application lifecycle through the service:
// 2,000 down payment plus four 2,000 installments due monthly.
func approvedSchedule(t *testing.T, svc *financing.Service, firstDue time.Time) *financing.Schedule {
	t.Helper()
	ctx := context.Background()
	now := firstDue.AddDate(0, -1, 0)

	app, err := svc.CreateApplication(ctx, financing.CreateApplicationRequest{
		Customer:       "ACME Corp",
		Quotation:      "QTN-001",
		TotalToFinance: dec("10000"),
		Interest:       dec("0"),
		Terms: financing.Terms{
			DownPaymentPercent: dec("20"),
			InterestRate:       dec("5"),
			RatePeriod:         "monthly",
		},
		InstallmentCount: 4,
		FirstDueDate:     firstDue,
	}, now)
	require.NoError(t, err)

	schedule, err := svc.ApproveApplication(ctx, app.ID, now)
	require.NoError(t, err)
	return schedule
}

func TestService_ApplicationLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	firstDue := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

	schedule := approvedSchedule(t, svc, firstDue)

	// 20% of 10,000 down, 8,000 spread over 4 installments.
	assert.True(t, dec("2000").Equal(schedule.DownPaymentAmount))
	require.Len(t, schedule.Installments, 4)
	assert.True(t, dec("2000").Equal(schedule.Installments[0].Amount))

	// The application is now approved in the store.
	app, err := svc.GetApplication(ctx, schedule.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, financing.ApplicationApproved, app.Status)

	// Approving a second time fails.
	_, err = svc.ApproveApplication(ctx, app.ID, firstDue)
	assert.ErrorIs(t, err, financing.ErrAlreadyApproved)
}

func TestService_CommitPaymentPersists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	firstDue := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	schedule := approvedSchedule(t, svc, firstDue)

	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	updated, err := svc.CommitPayment(ctx, schedule.ID,
		financing.PaymentRecord{PaymentEntry: "PE-1", Amount: dec("2500"), Date: now}, now)
	require.NoError(t, err)

	assert.True(t, updated.PendingDownPayment.IsZero())
	assert.True(t, dec("500").Equal(updated.Installments[0].PaidAmount))

	// The stored copy reflects the commit.
	stored, err := svc.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	require.Len(t, stored.Payments, 1)
	assert.True(t, dec("500").Equal(stored.Installments[0].PaidAmount))
}

func TestService_CommitPaymentDuplicateLeavesStoreUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	firstDue := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	schedule := approvedSchedule(t, svc, firstDue)

	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	rec := financing.PaymentRecord{PaymentEntry: "PE-1", Amount: dec("1000"), Date: now}
	_, err := svc.CommitPayment(ctx, schedule.ID, rec, now)
	require.NoError(t, err)

	_, err = svc.CommitPayment(ctx, schedule.ID, rec, now)
	assert.ErrorIs(t, err, financing.ErrDuplicatePayment)

	stored, err := svc.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 1)
}

func TestService_SimulateDoesNotRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	firstDue := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	schedule := approvedSchedule(t, svc, firstDue)

	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	_, err := svc.CommitPayment(ctx, schedule.ID,
		financing.PaymentRecord{PaymentEntry: "PE-1", Amount: dec("2500"), Date: now}, now)
	require.NoError(t, err)

	// WHEN a 1,700 payment is simulated (inst 0 has 1,500 pending, inst 1 is next)
	sim, err := svc.SimulatePayment(ctx, schedule.ID, dec("1700"))
	require.NoError(t, err)

	// THEN it would be pure principal split across two installments
	assert.True(t, dec("1700").Equal(sim.Principal), "principal = %s", sim.Principal)
	assert.True(t, sim.Penalty.IsZero())
	require.Len(t, sim.Lines, 2)
	assert.Equal(t, 0, sim.Lines[0].InstallmentIndex)
	assert.True(t, dec("1500").Equal(sim.Lines[0].Principal))
	assert.Equal(t, 1, sim.Lines[1].InstallmentIndex)
	assert.True(t, dec("200").Equal(sim.Lines[1].Principal))

	// AND nothing was recorded
	stored, err := svc.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 1)
}

func TestService_SimulateSplitsAccruedPenalty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	firstDue := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	schedule := approvedSchedule(t, svc, firstDue)

	// GIVEN the down payment is settled and installment 0 runs a month late,
	// accruing a 100 penalty (5% of its 2,000 principal)
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	_, err := svc.CommitPayment(ctx, schedule.ID,
		financing.PaymentRecord{PaymentEntry: "PE-1", Amount: dec("2000"), Date: now}, now)
	require.NoError(t, err)

	cfg := engine.PenaltyConfig{
		RatePerPeriod: dec("0.05"),
		Policy:        engine.PeriodPolicyCalendarMonth,
	}
	today := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	summary, err := svc.RunPenaltyBatch(ctx, cfg, today)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Updated)

	// WHEN a 2,100 payment is simulated
	sim, err := svc.SimulatePayment(ctx, schedule.ID, dec("2100"))
	require.NoError(t, err)

	// THEN the principal is cleared first and the rest covers the penalty
	assert.True(t, dec("2000").Equal(sim.Principal), "principal = %s", sim.Principal)
	assert.True(t, dec("100").Equal(sim.Penalty), "penalty = %s", sim.Penalty)
	require.Len(t, sim.Lines, 1)
	assert.Equal(t, 0, sim.Lines[0].InstallmentIndex)
	assert.True(t, dec("2000").Equal(sim.Lines[0].Principal))
	assert.True(t, dec("100").Equal(sim.Lines[0].Penalty))

	// AND a smaller payment only partially covers the penalty
	sim, err = svc.SimulatePayment(ctx, schedule.ID, dec("2050"))
	require.NoError(t, err)
	assert.True(t, dec("2000").Equal(sim.Principal))
	assert.True(t, dec("50").Equal(sim.Penalty))

	// AND nothing was recorded
	stored, err := svc.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 1)
}

func TestService_OverdueReportSortsMostOverdueFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	early := approvedSchedule(t, svc, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	late := approvedSchedule(t, svc, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))

	asOf := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.OverdueReport(ctx, asOf)
	require.NoError(t, err)

	require.Len(t, report, 2)
	assert.Equal(t, early.ID, report[0].ScheduleID)
	assert.Equal(t, late.ID, report[1].ScheduleID)
	assert.Greater(t, report[0].DaysOverdue, report[1].DaysOverdue)
	assert.Equal(t, 3, report[0].OverdueCount)
	assert.Equal(t, 1, report[1].OverdueCount)
}

// flakyStore fails schedule saves for one schedule, for batch isolation tests.
type flakyStore struct {
	financing.Store
	failID financing.ScheduleID
}

func (f *flakyStore) SaveSchedule(ctx context.Context, s *financing.Schedule) error {
	if s.ID == f.failID {
		return errors.New("simulated storage failure")
	}
	return f.Store.SaveSchedule(ctx, s)
}

func TestService_PenaltyBatchIsolatesFailures(t *testing.T) {
	mem := store.NewMemory()
	flaky := &flakyStore{Store: mem}
	svc := financing.NewService(flaky, zaptest.NewLogger(t))
	ctx := context.Background()

	broken := approvedSchedule(t, svc, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	healthy := approvedSchedule(t, svc, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	flaky.failID = broken.ID

	cfg := engine.PenaltyConfig{RatePerPeriod: dec("0.05"), Policy: engine.PeriodPolicyCalendarMonth}
	today := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	summary, err := svc.RunPenaltyBatch(ctx, cfg, today)
	require.NoError(t, err)

	// One schedule failed to save, the other went through.
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Failed)

	stored, err := svc.GetSchedule(ctx, healthy.ID)
	require.NoError(t, err)
	assert.True(t, stored.Installments[0].PenaltyAmount.GreaterThan(dec("0")))

	untouched, err := svc.GetSchedule(ctx, broken.ID)
	require.NoError(t, err)
	assert.True(t, untouched.Installments[0].PenaltyAmount.IsZero())
}

func TestService_PenaltyBatchRejectsBadConfig(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RunPenaltyBatch(context.Background(),
		engine.PenaltyConfig{}, time.Now())
	assert.ErrorIs(t, err, engine.ErrPenaltyRateMissing)
}

func TestService_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetSchedule(ctx, "PP-missing")
	assert.ErrorIs(t, err, financing.ErrScheduleNotFound)

	_, err = svc.ApproveApplication(ctx, "FA-missing", time.Now())
	assert.ErrorIs(t, err, financing.ErrApplicationNotFound)
}
