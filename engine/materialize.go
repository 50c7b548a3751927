/*
materialize.go - Projection of an allocation onto obligation state

PURPOSE:
  Turns the engine's per-obligation allocation lists into the paid/pending
  state and payment references the schedule persists. Representation rule:
  exactly one entry becomes a single payment reference; more than one becomes
  a grouped reference holding the full list.

WATERFALL CUT-OFF:
  Installment processing stops at the first installment with no entries -
  nothing later can be settled if an earlier one is not, so the remaining
  installments keep zero paid and full pending.
*/
package engine

// ObligationState is the materialized state of one obligation.
type ObligationState struct {
	Paid    Cents
	Pending Cents
	Ref     PaymentRef
}

// MaterializedState is the full projection of an allocation result.
type MaterializedState struct {
	DownPayment  ObligationState
	Installments []ObligationState
}

// Materialize projects an allocation state onto the schedule shape it was
// computed from. state must be the result of Allocate over the same
// installments; a length mismatch is an invariant violation.
//
// Pending for an installment is principal - paid + penalty, floored at zero.
// The down payment carries no penalty.
func Materialize(state []ObligationAllocation, downPayment Cents, installments []InstallmentDue) (MaterializedState, error) {
	if len(state) != len(installments)+1 {
		return MaterializedState{}, ErrStateMismatch
	}

	result := MaterializedState{
		Installments: make([]ObligationState, len(installments)),
	}

	// Obligation 0: the down payment.
	result.DownPayment = materializeOne(state[0], downPayment, 0)

	funded := true
	for i, inst := range installments {
		obligation := state[i+1]
		if !funded || len(obligation.Entries) == 0 {
			// First unfunded installment: stop, everything later stays unpaid.
			funded = false
			result.Installments[i] = ObligationState{
				Paid:    0,
				Pending: flooredPending(inst.Principal, 0, inst.Penalty),
				Ref:     NoRef(),
			}
			continue
		}
		result.Installments[i] = materializeOne(obligation, inst.Principal, inst.Penalty)
	}

	return result, nil
}

func materializeOne(obligation ObligationAllocation, principal, penalty Cents) ObligationState {
	paid := obligation.Allocated()

	var ref PaymentRef
	switch len(obligation.Entries) {
	case 0:
		ref = NoRef()
	case 1:
		ref = SingleRef(obligation.Entries[0].PaymentID, obligation.Entries[0].Amount)
	default:
		entries := make([]AllocationEntry, len(obligation.Entries))
		copy(entries, obligation.Entries)
		ref = GroupRef(entries)
	}

	return ObligationState{
		Paid:    paid,
		Pending: flooredPending(principal, paid, penalty),
		Ref:     ref,
	}
}

func flooredPending(principal, paid, penalty Cents) Cents {
	pending := principal - paid + penalty
	if pending < 0 {
		return 0
	}
	return pending
}
