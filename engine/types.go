/*
Package engine provides the payment allocation and installment-state engine.

PURPOSE:
  This package contains the pure, side-effect-free algorithms behind customer
  financing: deciding how an arbitrary, growing set of payments applies to a
  down payment + N-installment schedule, verifying that a recomputed allocation
  only ever extends the previously committed one, and projecting the result
  back onto per-obligation paid/pending state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: integer minor-unit money used for all allocation arithmetic
  - Payment: an immutable external receipt (identifier, amount, date)
  - InstallmentDue: one scheduled obligation (principal + accrued penalty)
  - AllocationEntry: (payment, amount) pair consumed by an obligation
  - ObligationAllocation: an obligation plus its ordered allocation entries
  - PaymentRef: sum type for "one payment" vs "a group of payments" per obligation

DESIGN PRINCIPLES:
  1. Determinism: same obligations + payments always produce the same allocation
  2. Precision: allocation compares exact integers, never floats
  3. Append-only: payments are only ever appended; allocation state only extends
  4. Purity: no persistence, no clock, no configuration singletons

SEE ALSO:
  - allocate.go: waterfall allocation and the principal-vs-penalty analysis mode
  - continuity.go: proof that a recomputed state extends the committed one
  - materialize.go: projection onto paid/pending obligation state
  - penalty.go: overdue penalty accrual
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT - External receipt applied against a schedule
// =============================================================================

// Payment is an external receipt. Immutable once recorded; new payments are
// only ever appended, never edited or removed.
type Payment struct {
	// ID is the stable reference to the originating payment record.
	ID string

	// Amount in minor units. Always positive.
	Amount Cents

	// Date is the receipt date. Allocation order is insertion order, not
	// date order; Date is carried for audit only.
	Date time.Time
}

// Remaining returns how much of the payment is still unconsumed given an
// already-allocated amount.
func (p Payment) Remaining(allocated Cents) Cents {
	return p.Amount - allocated
}

// =============================================================================
// OBLIGATION - One scheduled amount owed
// =============================================================================

// InstallmentDue is one obligation in schedule order: the principal owed plus
// any externally accrued penalty. The waterfall pass targets principal only;
// penalty participates in the analysis mode and in pending-amount math.
type InstallmentDue struct {
	Principal Cents
	Penalty   Cents
}

// AllocationEntry records one payment's contribution to one obligation.
type AllocationEntry struct {
	PaymentID string
	Amount    Cents
}

// ObligationAllocation is an obligation with the ordered list of allocation
// entries the engine assigned to it. Index 0 is always the down payment.
type ObligationAllocation struct {
	Index   int
	Due     Cents
	Entries []AllocationEntry
}

// Allocated returns the total amount consumed by this obligation.
func (o ObligationAllocation) Allocated() Cents {
	var total Cents
	for _, e := range o.Entries {
		total += e.Amount
	}
	return total
}

// EntryLists strips an allocation result down to the per-obligation entry
// lists, the shape the continuity validator compares.
func EntryLists(state []ObligationAllocation) [][]AllocationEntry {
	lists := make([][]AllocationEntry, len(state))
	for i, o := range state {
		lists[i] = o.Entries
	}
	return lists
}

// =============================================================================
// PAYMENT REF - Single vs grouped payment reference per obligation
// =============================================================================

// RefKind discriminates PaymentRef.
type RefKind int

const (
	// RefNone: the obligation has no allocation yet.
	RefNone RefKind = iota
	// RefSingle: exactly one payment settled (part of) the obligation.
	RefSingle
	// RefGroup: several payments contributed; the full list is kept.
	RefGroup
)

// PaymentRef is an obligation's payment history: nothing, a single payment
// reference, or a grouped-reference record aggregating several. Modeled as a
// tagged union rather than mutually exclusive optional fields.
type PaymentRef struct {
	Kind RefKind

	// Set when Kind == RefSingle.
	PaymentID string
	Amount    Cents

	// Set when Kind == RefGroup.
	Entries []AllocationEntry
}

func NoRef() PaymentRef {
	return PaymentRef{Kind: RefNone}
}

func SingleRef(paymentID string, amount Cents) PaymentRef {
	return PaymentRef{Kind: RefSingle, PaymentID: paymentID, Amount: amount}
}

func GroupRef(entries []AllocationEntry) PaymentRef {
	return PaymentRef{Kind: RefGroup, Entries: entries}
}

// EntryList expands the ref back into the entry-list shape, whatever the kind.
func (r PaymentRef) EntryList() []AllocationEntry {
	switch r.Kind {
	case RefSingle:
		return []AllocationEntry{{PaymentID: r.PaymentID, Amount: r.Amount}}
	case RefGroup:
		return r.Entries
	default:
		return nil
	}
}

// Clone returns a copy that shares no slice memory with the receiver.
func (r PaymentRef) Clone() PaymentRef {
	dup := r
	if r.Entries != nil {
		dup.Entries = append([]AllocationEntry(nil), r.Entries...)
	}
	return dup
}

// Total returns the summed amount the ref accounts for.
func (r PaymentRef) Total() Cents {
	var total Cents
	for _, e := range r.EntryList() {
		total += e.Amount
	}
	return total
}

// =============================================================================
// LINE ITEM - Priced quotation line for interest distribution
// =============================================================================

// LineItem is a priced line the interest distributor apportions over.
type LineItem struct {
	Code   string
	Name   string
	Qty    decimal.Decimal
	Rate   decimal.Decimal
	Amount decimal.Decimal
}
