/*
allocate.go - Waterfall payment allocation

PURPOSE:
  Given a down payment, the installments in due-date order and the payments in
  insertion order, decide exactly how much of each payment applies to which
  obligation. Two modes live here:

  1. Allocate: the strict waterfall. Funds fill the earliest unfilled
     obligation completely before anything flows to a later one. A payment may
     be split across two consecutive obligations but never skips an unfilled
     obligation. Targets principal only.

  2. AnalyzePayment: a read-only preview of a hypothetical new payment. Runs
     the same waterfall with the hypothetical payment appended, then splits
     that payment's contribution per installment into principal-first and
     penalty-capped portions.

DETERMINISM:
  Tie-break for simultaneous eligibility is payment insertion order, not
  amount or date. Running either mode twice on unchanged inputs yields an
  identical result, which is what makes full recomputation on every new
  payment safe to diff against the committed state (see continuity.go).
*/
package engine

// simulatedPaymentID marks the hypothetical payment AnalyzePayment appends to
// the pool. It never collides with real payment identifiers, which reference
// persisted payment records.
const simulatedPaymentID = "~SIMULATION~"

// Allocate runs the waterfall. Obligation 0 is a synthetic entry for the down
// payment; installments follow in order. The returned slice always has
// 1+len(installments) elements, each carrying the allocation entries consumed
// by that obligation (possibly none).
//
// Driving a payment past its amount is an invariant violation and returns an
// OverAllocationError; it is never clamped.
func Allocate(downPayment Cents, installments []InstallmentDue, payments []Payment) ([]ObligationAllocation, error) {
	state := make([]ObligationAllocation, 0, len(installments)+1)
	state = append(state, ObligationAllocation{Index: 0, Due: downPayment})
	for i, inst := range installments {
		state = append(state, ObligationAllocation{Index: i + 1, Due: inst.Principal})
	}

	// Mutable pool: how much of each payment is already consumed.
	consumed := make([]Cents, len(payments))

	for oi := range state {
		obligation := &state[oi]
		var allocated Cents

		for pi := range payments {
			if consumed[pi] == payments[pi].Amount {
				continue // fully consumed
			}
			if consumed[pi] > payments[pi].Amount {
				return nil, &OverAllocationError{
					PaymentID: payments[pi].ID,
					Allocated: consumed[pi],
					Amount:    payments[pi].Amount,
				}
			}
			if allocated >= obligation.Due {
				break // obligation is full
			}

			remaining := payments[pi].Remaining(consumed[pi])
			capacity := obligation.Due - allocated

			take := remaining
			if take > capacity {
				take = capacity
			}
			consumed[pi] += take
			allocated += take
			obligation.Entries = append(obligation.Entries, AllocationEntry{
				PaymentID: payments[pi].ID,
				Amount:    take,
			})
		}
	}

	return state, nil
}

// =============================================================================
// ANALYSIS MODE - Principal vs penalty preview for a hypothetical payment
// =============================================================================

// InstallmentBreakdown is one installment's share of an analyzed payment.
type InstallmentBreakdown struct {
	InstallmentIndex int // 0-based into the installments slice
	PrincipalPayment Cents
	PenaltyPayment   Cents
	Principal        Cents // the installment's principal amount
	Penalty          Cents // the installment's accrued penalty
}

// PaymentAnalysis is the result of previewing a hypothetical payment.
type PaymentAnalysis struct {
	Principal Cents
	Penalty   Cents
	Breakdown []InstallmentBreakdown
}

// AnalyzePayment previews how a hypothetical payment of the given amount
// would split between principal and penalty, without mutating anything.
//
// The waterfall is simulated with the hypothetical payment appended after the
// existing ones, with each installment's capacity widened to principal plus
// accrued penalty so the preview can route money into penalties the committed
// waterfall never targets. Per installment the contribution goes to remaining
// principal first; the excess is capped at the installment's penalty. Excess
// beyond the last installment's principal+penalty is dropped.
//
// Down-payment consumption is excluded from the breakdown: the down payment
// carries no penalty, so there is nothing to split.
func AnalyzePayment(downPayment Cents, installments []InstallmentDue, existing []Payment, amount Cents) (PaymentAnalysis, error) {
	analysis := PaymentAnalysis{}
	if amount <= 0 {
		return analysis, nil
	}

	pool := make([]Payment, 0, len(existing)+1)
	pool = append(pool, existing...)
	pool = append(pool, Payment{ID: simulatedPaymentID, Amount: amount})

	// Widened obligations: the preview waterfall fills principal and penalty,
	// the split below separates the two against the real figures.
	widened := make([]InstallmentDue, len(installments))
	for i, inst := range installments {
		widened[i] = InstallmentDue{Principal: inst.Principal + inst.Penalty}
	}

	state, err := Allocate(downPayment, widened, pool)
	if err != nil {
		return PaymentAnalysis{}, err
	}

	for oi, obligation := range state {
		var simulated Cents
		for _, e := range obligation.Entries {
			if e.PaymentID == simulatedPaymentID {
				simulated = e.Amount
				break
			}
		}
		if simulated <= 0 || oi == 0 {
			continue
		}

		inst := installments[oi-1]

		// Principal already covered by the existing payments.
		var priorPrincipal Cents
		for _, e := range obligation.Entries {
			if e.PaymentID == simulatedPaymentID {
				continue
			}
			room := inst.Principal - priorPrincipal
			if e.Amount < room {
				room = e.Amount
			}
			priorPrincipal += room
		}

		remainingPrincipal := inst.Principal - priorPrincipal
		if remainingPrincipal < 0 {
			remainingPrincipal = 0
		}

		principal := simulated
		if principal > remainingPrincipal {
			principal = remainingPrincipal
		}
		penalty := simulated - principal
		if penalty > inst.Penalty {
			penalty = inst.Penalty
		}

		analysis.Principal += principal
		analysis.Penalty += penalty
		analysis.Breakdown = append(analysis.Breakdown, InstallmentBreakdown{
			InstallmentIndex: oi - 1,
			PrincipalPayment: principal,
			PenaltyPayment:   penalty,
			Principal:        inst.Principal,
			Penalty:          inst.Penalty,
		})
	}

	return analysis, nil
}
