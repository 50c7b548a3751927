package financing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/financing-engine/engine"
)

// =============================================================================
// TERMS
// =============================================================================

// Terms are the financing parameters in force when an application is created.
// They come from configuration and are frozen onto the application so later
// settings changes never rewrite an agreed plan.
type Terms struct {
	// DownPaymentPercent is the required down payment as a percentage of the
	// financed total, e.g. 20 for 20%.
	DownPaymentPercent decimal.Decimal

	// InterestRate is the percentage rate per RatePeriod, e.g. 5 for 5%.
	InterestRate decimal.Decimal

	// ApplicationFee is a flat fee added to the first installment's period.
	ApplicationFee decimal.Decimal

	// RatePeriod names the period InterestRate applies to ("monthly").
	RatePeriod string
}

// =============================================================================
// APPLICATION
// =============================================================================

// PlannedInstallment is one future obligation on an application, before
// approval turns the plan into a live schedule.
type PlannedInstallment struct {
	DueDate time.Time
	Amount  decimal.Decimal
}

// Application is a customer's request to finance a quotation.
type Application struct {
	ID        ApplicationID
	Customer  string
	Quotation string
	Status    ApplicationStatus

	// TotalToFinance is the quotation total before interest.
	TotalToFinance decimal.Decimal

	// Interest is the total interest amount for the agreed term. It is
	// supplied with the application, not derived here.
	Interest decimal.Decimal

	DownPayment decimal.Decimal
	Terms       Terms

	Installments []PlannedInstallment

	CreatedAt  time.Time
	ApprovedAt time.Time
}

// NewApplication creates a draft application. The down payment is fixed at
// creation from the terms' percentage.
func NewApplication(id ApplicationID, customer, quotation string, total, interest decimal.Decimal, terms Terms, now time.Time) (*Application, error) {
	if customer == "" {
		return nil, fmt.Errorf("customer is required")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("total to finance must be positive, got %s", total)
	}
	if interest.IsNegative() {
		return nil, fmt.Errorf("interest cannot be negative, got %s", interest)
	}

	down := total.Mul(terms.DownPaymentPercent).Div(decimal.NewFromInt(100)).RoundBank(2)

	return &Application{
		ID:             id,
		Customer:       customer,
		Quotation:      quotation,
		Status:         ApplicationDraft,
		TotalToFinance: total,
		Interest:       interest,
		DownPayment:    down,
		Terms:          terms,
		CreatedAt:      now,
	}, nil
}

// FinancedTotal is what the customer ultimately owes: principal plus interest.
func (a *Application) FinancedTotal() decimal.Decimal {
	return a.TotalToFinance.Add(a.Interest)
}

// PlanInstallments splits the amount left after the down payment into count
// equal monthly installments starting at firstDue. Rounding drift from the
// equal split lands on the last installment so the plan sums exactly; the
// application fee is charged with the first installment.
func (a *Application) PlanInstallments(count int, firstDue time.Time) error {
	if count <= 0 {
		return fmt.Errorf("installment count must be positive, got %d", count)
	}

	remaining := a.FinancedTotal().Sub(a.DownPayment)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("nothing left to finance after down payment %s", a.DownPayment)
	}

	base := remaining.Div(decimal.NewFromInt(int64(count))).RoundBank(2)
	plan := make([]PlannedInstallment, count)
	distributed := decimal.Zero
	for i := 0; i < count; i++ {
		amount := base
		if i == count-1 {
			amount = remaining.Sub(distributed)
		}
		distributed = distributed.Add(amount)
		plan[i] = PlannedInstallment{
			DueDate: firstDue.AddDate(0, i, 0),
			Amount:  amount,
		}
	}

	if a.Terms.ApplicationFee.GreaterThan(decimal.Zero) {
		plan[0].Amount = plan[0].Amount.Add(a.Terms.ApplicationFee)
	}

	a.Installments = plan
	return nil
}

// FinancedItems distributes the application's interest across the quotation's
// line items and checks the result against the financed total.
func (a *Application) FinancedItems(items []engine.LineItem) ([]engine.LineItem, error) {
	financed, err := engine.DistributeInterest(items, a.Interest)
	if err != nil {
		return nil, err
	}
	if financed == nil {
		// No interest to spread; the items stand as-is.
		financed = items
	}
	if err := ValidateFinancedTotal(financed, a.TotalToFinance, a.Interest); err != nil {
		return nil, err
	}
	return financed, nil
}

// financedTotalTolerance absorbs sub-cent drift from per-item rounding.
var financedTotalTolerance = decimal.New(1, -2)

// ValidateFinancedTotal checks that the financed items sum to the original
// total plus interest, within one cent.
func ValidateFinancedTotal(items []engine.LineItem, originalTotal, interest decimal.Decimal) error {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount)
	}
	expected := originalTotal.Add(interest)
	if sum.Sub(expected).Abs().GreaterThan(financedTotalTolerance) {
		return fmt.Errorf("%w: items total %s, expected %s", ErrFinancedTotalMismatch, sum, expected)
	}
	return nil
}

// Approve marks the application approved and builds its payment schedule.
func (a *Application) Approve(scheduleID ScheduleID, now time.Time) (*Schedule, error) {
	if a.Status == ApplicationApproved {
		return nil, ErrAlreadyApproved
	}
	if len(a.Installments) == 0 {
		return nil, ErrNoInstallments
	}

	installments := make([]Installment, len(a.Installments))
	for i, planned := range a.Installments {
		installments[i] = Installment{
			DueDate:       planned.DueDate,
			Amount:        planned.Amount,
			PenaltyAmount: decimal.Zero,
			PaidAmount:    decimal.Zero,
			PendingAmount: planned.Amount,
			Ref:           engine.NoRef(),
		}
	}

	a.Status = ApplicationApproved
	a.ApprovedAt = now

	return &Schedule{
		ID:                 scheduleID,
		ApplicationID:      a.ID,
		Customer:           a.Customer,
		Status:             ScheduleActive,
		DownPaymentAmount:  a.DownPayment,
		PendingDownPayment: a.DownPayment,
		PaidDownPayment:    decimal.Zero,
		DownPaymentRef:     engine.NoRef(),
		Installments:       installments,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
