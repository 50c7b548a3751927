package financing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/financing-engine/engine"
)

// =============================================================================
// SCHEDULE
// =============================================================================

// Installment is one dated obligation on a live schedule. PaidAmount,
// PendingAmount and Ref are derived state: they are overwritten on every
// recomputation from the payment pool.
type Installment struct {
	DueDate       time.Time
	Amount        decimal.Decimal
	PenaltyAmount decimal.Decimal
	PaidAmount    decimal.Decimal
	PendingAmount decimal.Decimal
	Ref           engine.PaymentRef
}

// PaymentRecord is one accepted payment. Records are append-only; the
// allocation engine re-derives everything else from them.
type PaymentRecord struct {
	PaymentEntry string
	Amount       decimal.Decimal
	Date         time.Time
}

// Schedule is the payment schedule created when an application is approved.
// The down payment is obligation zero; installments follow in due order.
type Schedule struct {
	ID            ScheduleID
	ApplicationID ApplicationID
	Customer      string
	Status        ScheduleStatus

	DownPaymentAmount  decimal.Decimal
	PaidDownPayment    decimal.Decimal
	PendingDownPayment decimal.Decimal
	DownPaymentRef     engine.PaymentRef

	Installments []Installment
	Payments     []PaymentRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the schedule still accepts payments.
func (s *Schedule) Open() bool {
	return s.Status == ScheduleActive || s.Status == ScheduleOverdue
}

// AddPayment appends a payment record after validating it. It does not
// recompute; callers follow with Recompute so validation failures never
// leave half-applied state.
func (s *Schedule) AddPayment(rec PaymentRecord) error {
	if !s.Open() {
		return fmt.Errorf("%w: schedule %s is %s", ErrScheduleNotOpen, s.ID, s.Status)
	}
	if rec.PaymentEntry == "" {
		return fmt.Errorf("%w: missing payment entry", ErrInvalidPayment)
	}
	if rec.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount %s is not positive", ErrInvalidPayment, rec.Amount)
	}
	for _, existing := range s.Payments {
		if existing.PaymentEntry == rec.PaymentEntry {
			return fmt.Errorf("%w: %s", ErrDuplicatePayment, rec.PaymentEntry)
		}
	}
	s.Payments = append(s.Payments, rec)
	return nil
}

// dues converts the installments into the engine's obligation form.
func (s *Schedule) dues() []engine.InstallmentDue {
	dues := make([]engine.InstallmentDue, len(s.Installments))
	for i, inst := range s.Installments {
		dues[i] = engine.InstallmentDue{
			Principal: engine.ToCents(inst.Amount),
			Penalty:   engine.ToCents(inst.PenaltyAmount),
		}
	}
	return dues
}

// pool converts the payment records into the engine's payment form,
// preserving insertion order.
func (s *Schedule) pool() []engine.Payment {
	pool := make([]engine.Payment, len(s.Payments))
	for i, rec := range s.Payments {
		pool[i] = engine.Payment{
			ID:     rec.PaymentEntry,
			Amount: engine.ToCents(rec.Amount),
			Date:   rec.Date,
		}
	}
	return pool
}

// committedState reconstructs the per-obligation entry lists from the
// payment references persisted on the schedule. This is what a fresh
// allocation is checked against for continuity.
func (s *Schedule) committedState() [][]engine.AllocationEntry {
	state := make([][]engine.AllocationEntry, 0, len(s.Installments)+1)
	state = append(state, s.DownPaymentRef.EntryList())
	for _, inst := range s.Installments {
		state = append(state, inst.Ref.EntryList())
	}
	return state
}

// obligationDues is the due amount of every obligation the waterfall sees,
// down payment first. CheckContinuity uses it to ignore zero-due obligations.
func (s *Schedule) obligationDues() []engine.Cents {
	dues := make([]engine.Cents, 0, len(s.Installments)+1)
	dues = append(dues, engine.ToCents(s.DownPaymentAmount))
	for _, inst := range s.Installments {
		dues = append(dues, engine.ToCents(inst.Amount))
	}
	return dues
}

// Recompute re-runs the allocation over the full payment pool, verifies the
// result is a pure extension of the committed state, and materializes it
// back onto the schedule. A continuity violation leaves the schedule
// untouched and must abort the surrounding commit.
func (s *Schedule) Recompute(now time.Time) (engine.ContinuitySignal, error) {
	state, err := engine.Allocate(engine.ToCents(s.DownPaymentAmount), s.dues(), s.pool())
	if err != nil {
		return engine.ContinuityNoChange, err
	}

	signal, err := engine.CheckContinuity(s.committedState(), engine.EntryLists(state), s.obligationDues())
	if err != nil {
		return signal, err
	}

	materialized, err := engine.Materialize(state, engine.ToCents(s.DownPaymentAmount), s.dues())
	if err != nil {
		return signal, err
	}

	s.PaidDownPayment = engine.FromCents(materialized.DownPayment.Paid)
	s.PendingDownPayment = engine.FromCents(materialized.DownPayment.Pending)
	s.DownPaymentRef = materialized.DownPayment.Ref
	for i := range s.Installments {
		s.Installments[i].PaidAmount = engine.FromCents(materialized.Installments[i].Paid)
		s.Installments[i].PendingAmount = engine.FromCents(materialized.Installments[i].Pending)
		s.Installments[i].Ref = materialized.Installments[i].Ref
	}

	s.refreshStatus(now)
	s.UpdatedAt = now
	return signal, nil
}

// refreshStatus derives the schedule status from installment state.
// Cancelled is sticky; everything else is recomputed.
func (s *Schedule) refreshStatus(now time.Time) {
	if s.Status == ScheduleCancelled {
		return
	}
	if s.settled() {
		s.Status = ScheduleCompleted
		return
	}
	if s.overdueCount(now) > 0 {
		s.Status = ScheduleOverdue
		return
	}
	s.Status = ScheduleActive
}

func (s *Schedule) settled() bool {
	if s.PendingDownPayment.GreaterThan(decimal.Zero) {
		return false
	}
	for _, inst := range s.Installments {
		if inst.PendingAmount.GreaterThan(decimal.Zero) {
			return false
		}
	}
	return true
}

// overdueCount is the number of installments past due with money pending.
func (s *Schedule) overdueCount(asOf time.Time) int {
	count := 0
	for _, inst := range s.Installments {
		if inst.DueDate.Before(asOf) && inst.PendingAmount.GreaterThan(decimal.Zero) {
			count++
		}
	}
	return count
}

// OverduePending sums the pending amounts of all overdue installments.
func (s *Schedule) OverduePending(asOf time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range s.Installments {
		if inst.DueDate.Before(asOf) && inst.PendingAmount.GreaterThan(decimal.Zero) {
			total = total.Add(inst.PendingAmount)
		}
	}
	return total
}

// OldestOverdueDue returns the due date of the oldest overdue installment.
// The boolean is false when nothing is overdue.
func (s *Schedule) OldestOverdueDue(asOf time.Time) (time.Time, bool) {
	for _, inst := range s.Installments {
		if inst.DueDate.Before(asOf) && inst.PendingAmount.GreaterThan(decimal.Zero) {
			return inst.DueDate, true
		}
	}
	return time.Time{}, false
}

// DownPaymentPercentPaid reports down payment progress as a percentage,
// rounded to two places.
func (s *Schedule) DownPaymentPercentPaid() decimal.Decimal {
	if s.DownPaymentAmount.LessThanOrEqual(decimal.Zero) {
		return decimal.NewFromInt(100)
	}
	return s.PaidDownPayment.Div(s.DownPaymentAmount).Mul(decimal.NewFromInt(100)).RoundBank(2)
}

// AccruePenalties recalculates the penalty of every past-due installment
// with outstanding principal and returns how many installments changed.
// Settled installments are left alone and penalties never decrease, so an
// obligation can never shrink below what is already allocated against it.
// Callers recompute afterwards so pending amounts pick up the new penalties.
func (s *Schedule) AccruePenalties(cfg engine.PenaltyConfig, today time.Time) (int, error) {
	changed := 0
	for i := range s.Installments {
		inst := &s.Installments[i]
		if inst.PendingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		pendingPrincipal := inst.Amount.Sub(inst.PaidAmount)
		penalty, err := engine.AccruePenalty(cfg, inst.DueDate, today, pendingPrincipal)
		if err != nil {
			return changed, fmt.Errorf("installment %d of schedule %s: %w", i, s.ID, err)
		}
		if penalty.LessThanOrEqual(inst.PenaltyAmount) {
			continue
		}
		inst.PenaltyAmount = penalty
		changed++
	}
	return changed, nil
}
