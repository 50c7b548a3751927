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

func standardTerms() financing.Terms {
	return financing.Terms{
		DownPaymentPercent: decimal.NewFromInt(20),
		InterestRate:       decimal.NewFromInt(5),
		ApplicationFee:     decimal.NewFromInt(50),
		RatePeriod:         "monthly",
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewApplication_DownPaymentFromTerms(t *testing.T) {
	// GIVEN a 10,000 quotation financed under 20% down payment terms
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// WHEN the application is created
	app, err := financing.NewApplication("FA-1", "ACME Corp", "QTN-001",
		dec("10000"), dec("500"), standardTerms(), now)
	require.NoError(t, err)

	// THEN the down payment is fixed at 2,000 and the financed total includes interest
	assert.True(t, dec("2000").Equal(app.DownPayment), "down payment = %s", app.DownPayment)
	assert.True(t, dec("10500").Equal(app.FinancedTotal()))
	assert.Equal(t, financing.ApplicationDraft, app.Status)
}

func TestNewApplication_RejectsBadInput(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := financing.NewApplication("FA-1", "", "QTN-001", dec("10000"), dec("0"), standardTerms(), now)
	assert.Error(t, err, "missing customer")

	_, err = financing.NewApplication("FA-1", "ACME", "QTN-001", dec("0"), dec("0"), standardTerms(), now)
	assert.Error(t, err, "non-positive total")

	_, err = financing.NewApplication("FA-1", "ACME", "QTN-001", dec("10000"), dec("-1"), standardTerms(), now)
	assert.Error(t, err, "negative interest")
}

func TestPlanInstallments_LastInstallmentAbsorbsRemainder(t *testing.T) {
	// GIVEN 8,500 to split over three monthly installments
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	app, err := financing.NewApplication("FA-1", "ACME", "QTN-001",
		dec("10000"), dec("500"), standardTerms(), now)
	require.NoError(t, err)

	firstDue := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	// WHEN installments are planned
	require.NoError(t, app.PlanInstallments(3, firstDue))

	// THEN the equal split rounds to 2,833.33, the 50 application fee lands on
	// the first installment, and the last picks up the extra cent
	require.Len(t, app.Installments, 3)
	assert.True(t, dec("2883.33").Equal(app.Installments[0].Amount), "got %s", app.Installments[0].Amount)
	assert.True(t, dec("2833.33").Equal(app.Installments[1].Amount))
	assert.True(t, dec("2833.34").Equal(app.Installments[2].Amount))

	// AND due dates advance month by month
	assert.Equal(t, firstDue, app.Installments[0].DueDate)
	assert.Equal(t, firstDue.AddDate(0, 1, 0), app.Installments[1].DueDate)
	assert.Equal(t, firstDue.AddDate(0, 2, 0), app.Installments[2].DueDate)

	// AND the plan sums exactly to the financed remainder plus the fee
	sum := decimal.Zero
	for _, inst := range app.Installments {
		sum = sum.Add(inst.Amount)
	}
	assert.True(t, dec("8550").Equal(sum))
}

func TestFinancedItems_DistributesInterestAndValidates(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	app, err := financing.NewApplication("FA-1", "ACME", "QTN-001",
		dec("1000"), dec("100"), standardTerms(), now)
	require.NoError(t, err)

	items := []engine.LineItem{
		{Code: "A", Qty: decimal.NewFromInt(1), Rate: dec("300"), Amount: dec("300")},
		{Code: "B", Qty: decimal.NewFromInt(1), Rate: dec("300"), Amount: dec("300")},
		{Code: "C", Qty: decimal.NewFromInt(1), Rate: dec("400"), Amount: dec("400")},
	}

	financed, err := app.FinancedItems(items)
	require.NoError(t, err)
	require.Len(t, financed, 3)
	assert.True(t, dec("330").Equal(financed[0].Amount))
	assert.True(t, dec("330").Equal(financed[1].Amount))
	assert.True(t, dec("440").Equal(financed[2].Amount))
}

func TestValidateFinancedTotal_ToleratesOneCent(t *testing.T) {
	items := []engine.LineItem{
		{Code: "A", Amount: dec("500.01")},
		{Code: "B", Amount: dec("550.00")},
	}

	// One cent off is acceptable rounding drift.
	assert.NoError(t, financing.ValidateFinancedTotal(items, dec("1000"), dec("50")))

	// Two cents is a real mismatch.
	err := financing.ValidateFinancedTotal(items, dec("1000"), dec("50.03"))
	assert.ErrorIs(t, err, financing.ErrFinancedTotalMismatch)
}

func TestApprove_BuildsSchedule(t *testing.T) {
	// GIVEN a planned application
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	app, err := financing.NewApplication("FA-1", "ACME", "QTN-001",
		dec("10000"), dec("500"), standardTerms(), now)
	require.NoError(t, err)
	firstDue := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, app.PlanInstallments(3, firstDue))

	// WHEN it is approved
	approvedAt := now.AddDate(0, 0, 2)
	schedule, err := app.Approve("PP-1", approvedAt)
	require.NoError(t, err)

	// THEN the schedule starts fully pending with no payment references
	assert.Equal(t, financing.ApplicationApproved, app.Status)
	assert.Equal(t, financing.ScheduleActive, schedule.Status)
	assert.True(t, dec("2000").Equal(schedule.PendingDownPayment))
	assert.Equal(t, engine.RefNone, schedule.DownPaymentRef.Kind)
	require.Len(t, schedule.Installments, 3)
	for _, inst := range schedule.Installments {
		assert.True(t, inst.PendingAmount.Equal(inst.Amount))
		assert.True(t, inst.PaidAmount.IsZero())
		assert.Equal(t, engine.RefNone, inst.Ref.Kind)
	}

	// AND approving again is rejected
	_, err = app.Approve("PP-2", approvedAt)
	assert.ErrorIs(t, err, financing.ErrAlreadyApproved)
}

func TestApprove_RequiresPlannedInstallments(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	app, err := financing.NewApplication("FA-1", "ACME", "QTN-001",
		dec("10000"), dec("500"), standardTerms(), now)
	require.NoError(t, err)

	_, err = app.Approve("PP-1", now)
	assert.ErrorIs(t, err, financing.ErrNoInstallments)
}
