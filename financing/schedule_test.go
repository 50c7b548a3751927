package financing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/financing-engine/engine"
	"github.com/warp/financing-engine/financing"
)

// testSchedule builds an approved schedule: 2,000 down payment plus three
// 1,000 installments due monthly from 2025-01-15.
func testSchedule(t *testing.T) *financing.Schedule {
	t.Helper()
	created := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	terms := standardTerms()
	terms.ApplicationFee = decimal.Zero
	app, err := financing.NewApplication("FA-1", "ACME", "QTN-001",
		dec("4800"), dec("200"), terms, created)
	require.NoError(t, err)
	// 4,800 * 20% = 960 down; override for round numbers.
	app.DownPayment = dec("2000")
	firstDue := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, app.PlanInstallments(3, firstDue))
	schedule, err := app.Approve("PP-1", created)
	require.NoError(t, err)
	return schedule
}

func payment(id, amount string, date time.Time) financing.PaymentRecord {
	return financing.PaymentRecord{PaymentEntry: id, Amount: decimal.RequireFromString(amount), Date: date}
}

func TestSchedule_FirstPaymentCrossesDownPaymentBoundary(t *testing.T) {
	// GIVEN a fresh schedule (2,000 down + 3 x 1,000)
	schedule := testSchedule(t)
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	// WHEN a 2,500 payment is committed
	require.NoError(t, schedule.AddPayment(payment("PE-1", "2500", now)))
	signal, err := schedule.Recompute(now)
	require.NoError(t, err)

	// THEN the down payment settles and the first installment takes the rest
	assert.Equal(t, engine.ContinuityFresh, signal)
	assert.True(t, dec("2000").Equal(schedule.PaidDownPayment))
	assert.True(t, schedule.PendingDownPayment.IsZero())
	assert.Equal(t, engine.RefSingle, schedule.DownPaymentRef.Kind)

	first := schedule.Installments[0]
	assert.True(t, dec("500").Equal(first.PaidAmount))
	assert.True(t, dec("500").Equal(first.PendingAmount))
	assert.Equal(t, "PE-1", first.Ref.PaymentID)

	// AND later installments are untouched
	assert.True(t, schedule.Installments[1].PaidAmount.IsZero())
	assert.Equal(t, engine.RefNone, schedule.Installments[1].Ref.Kind)
	assert.Equal(t, financing.ScheduleActive, schedule.Status)
}

func TestSchedule_ZeroDownPaymentCommits(t *testing.T) {
	// GIVEN a schedule financed with no down payment (3 x 1,000)
	created := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	terms := standardTerms()
	terms.DownPaymentPercent = decimal.Zero
	terms.ApplicationFee = decimal.Zero
	app, err := financing.NewApplication("FA-2", "ACME", "QTN-002",
		dec("3000"), decimal.Zero, terms, created)
	require.NoError(t, err)
	firstDue := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, app.PlanInstallments(3, firstDue))
	schedule, err := app.Approve("PP-2", created)
	require.NoError(t, err)

	// WHEN the first payment is committed
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, schedule.AddPayment(payment("PE-1", "500", now)))
	signal, err := schedule.Recompute(now)

	// THEN it funds the first installment directly
	require.NoError(t, err)
	assert.Equal(t, engine.ContinuityFresh, signal)
	assert.True(t, schedule.PendingDownPayment.IsZero())
	assert.True(t, dec("500").Equal(schedule.Installments[0].PaidAmount))

	// AND a follow-up commit extends the state
	later := now.AddDate(0, 0, 2)
	require.NoError(t, schedule.AddPayment(payment("PE-2", "700", later)))
	signal, err = schedule.Recompute(later)
	require.NoError(t, err)
	assert.Equal(t, engine.ContinuityExtended, signal)
	assert.True(t, dec("1000").Equal(schedule.Installments[0].PaidAmount))
	assert.True(t, dec("200").Equal(schedule.Installments[1].PaidAmount))
}

func TestSchedule_SecondPaymentExtendsState(t *testing.T) {
	schedule := testSchedule(t)
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, schedule.AddPayment(payment("PE-1", "2500", now)))
	_, err := schedule.Recompute(now)
	require.NoError(t, err)

	// WHEN a second payment lands on the partially paid installment
	later := now.AddDate(0, 0, 3)
	require.NoError(t, schedule.AddPayment(payment("PE-2", "700", later)))
	signal, err := schedule.Recompute(later)
	require.NoError(t, err)

	// THEN the recomputed state extends the committed one
	assert.Equal(t, engine.ContinuityExtended, signal)

	// AND the first installment is now settled by two payments
	first := schedule.Installments[0]
	assert.True(t, dec("1000").Equal(first.PaidAmount))
	assert.True(t, first.PendingAmount.IsZero())
	assert.Equal(t, engine.RefGroup, first.Ref.Kind)
	require.Len(t, first.Ref.Entries, 2)

	// AND the overflow starts the second installment
	second := schedule.Installments[1]
	assert.True(t, dec("200").Equal(second.PaidAmount))
	assert.Equal(t, engine.RefSingle, second.Ref.Kind)
}

func TestSchedule_FullPaymentCompletes(t *testing.T) {
	schedule := testSchedule(t)
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, schedule.AddPayment(payment("PE-1", "5000", now)))
	_, err := schedule.Recompute(now)
	require.NoError(t, err)

	assert.Equal(t, financing.ScheduleCompleted, schedule.Status)
	for _, inst := range schedule.Installments {
		assert.True(t, inst.PendingAmount.IsZero())
	}

	// Completed schedules refuse further payments.
	err = schedule.AddPayment(payment("PE-2", "100", now))
	assert.ErrorIs(t, err, financing.ErrScheduleNotOpen)
}

func TestSchedule_OverdueStatusAndHelpers(t *testing.T) {
	schedule := testSchedule(t)

	// Down payment settled, first installment only half paid.
	start := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, schedule.AddPayment(payment("PE-1", "2500", start)))
	_, err := schedule.Recompute(start)
	require.NoError(t, err)
	assert.Equal(t, financing.ScheduleActive, schedule.Status)

	// A month later the first installment is past due.
	later := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = schedule.Recompute(later)
	require.NoError(t, err)
	assert.Equal(t, financing.ScheduleOverdue, schedule.Status)

	assert.True(t, dec("500").Equal(schedule.OverduePending(later)))
	oldest, ok := schedule.OldestOverdueDue(later)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), oldest)
}

func TestSchedule_AddPaymentValidation(t *testing.T) {
	schedule := testSchedule(t)
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, schedule.AddPayment(payment("", "100", now)), financing.ErrInvalidPayment)
	assert.ErrorIs(t, schedule.AddPayment(payment("PE-1", "0", now)), financing.ErrInvalidPayment)
	assert.ErrorIs(t, schedule.AddPayment(payment("PE-1", "-5", now)), financing.ErrInvalidPayment)

	require.NoError(t, schedule.AddPayment(payment("PE-1", "100", now)))
	assert.ErrorIs(t, schedule.AddPayment(payment("PE-1", "100", now)), financing.ErrDuplicatePayment)
}

func TestSchedule_DownPaymentPercentPaid(t *testing.T) {
	schedule := testSchedule(t)
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, schedule.AddPayment(payment("PE-1", "500", now)))
	_, err := schedule.Recompute(now)
	require.NoError(t, err)

	assert.True(t, dec("25").Equal(schedule.DownPaymentPercentPaid()),
		"got %s", schedule.DownPaymentPercentPaid())
}

func TestSchedule_PenaltyAccrualRaisesPending(t *testing.T) {
	// GIVEN a schedule with 500 principal pending on an installment due 2025-01-15
	schedule := testSchedule(t)
	start := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, schedule.AddPayment(payment("PE-1", "2500", start)))
	_, err := schedule.Recompute(start)
	require.NoError(t, err)

	cfg := engine.PenaltyConfig{
		RatePerPeriod: dec("0.05"),
		Policy:        engine.PeriodPolicyCalendarMonth,
	}

	// WHEN penalties accrue one full month past due
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	changed, err := schedule.AccruePenalties(cfg, today)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	// THEN 5% of the 500 pending principal is added
	assert.True(t, dec("25").Equal(schedule.Installments[0].PenaltyAmount))

	// AND recomputation folds the penalty into the pending amount
	_, err = schedule.Recompute(today)
	require.NoError(t, err)
	assert.True(t, dec("525").Equal(schedule.Installments[0].PendingAmount))

	// AND a second run at the same date changes nothing
	changed, err = schedule.AccruePenalties(cfg, today)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func TestSchedule_PenaltySkipsSettledInstallments(t *testing.T) {
	schedule := testSchedule(t)
	start := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, schedule.AddPayment(payment("PE-1", "3000", start)))
	_, err := schedule.Recompute(start)
	require.NoError(t, err)

	// First installment fully settled; only the still-pending ones accrue.
	cfg := engine.PenaltyConfig{RatePerPeriod: dec("0.05"), Policy: engine.PeriodPolicyCalendarMonth}
	today := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	changed, err := schedule.AccruePenalties(cfg, today)
	require.NoError(t, err)

	assert.True(t, schedule.Installments[0].PenaltyAmount.IsZero())
	assert.Equal(t, 2, changed)
	assert.True(t, schedule.Installments[1].PenaltyAmount.GreaterThan(decimal.Zero))
}
