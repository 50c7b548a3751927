/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All engine error types in one place. The taxonomy matters here:

  1. Input validation errors - bad caller input, recoverable, surface to caller
  2. Invariant violations    - programming defects, fatal, abort the commit
  3. External errors         - store failures, propagated unchanged by callers

  Invariant violations must never be silently clamped or partially applied:
  an over-allocated payment or a rewritten allocation history signals a defect
  in the scan logic or a corrupted snapshot, not bad input.

USAGE:
  if errors.Is(err, engine.ErrRewrittenHistory) { ... }
  if engine.IsInvariantViolation(err) { abort the commit }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoItems is returned when interest distribution receives no line items.
	ErrNoItems = errors.New("no items to distribute interest over")

	// ErrNonPositiveBase is returned when the items' total base amount is not
	// positive, making proportional shares undefined.
	ErrNonPositiveBase = errors.New("total base amount must be greater than zero")

	// ErrOverAllocation is returned when a payment's allocated total exceeds
	// its amount. Invariant violation: defect in the scan logic.
	ErrOverAllocation = errors.New("payment allocated beyond its amount")

	// ErrAllocationGap is returned when a later obligation carries allocation
	// entries while an earlier one is empty, breaking the waterfall ordering.
	// Invariant violation.
	ErrAllocationGap = errors.New("allocation gap: later obligation funded before earlier one")

	// ErrRewrittenHistory is returned when a recomputed allocation alters an
	// already-committed obligation instead of extending it. Invariant violation.
	ErrRewrittenHistory = errors.New("allocation state rewrites committed history")

	// ErrStateMismatch is returned when an allocation state does not line up
	// with the schedule it is being materialized onto. Invariant violation.
	ErrStateMismatch = errors.New("allocation state does not match schedule shape")

	// ErrPenaltyRateMissing is returned when penalty accrual is invoked without
	// a configured per-period rate.
	ErrPenaltyRateMissing = errors.New("penalty rate per period is not configured")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverAllocationError reports which payment was driven past its amount.
type OverAllocationError struct {
	PaymentID string
	Allocated Cents
	Amount    Cents
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("payment %s allocated %d of %d minor units", e.PaymentID, e.Allocated, e.Amount)
}

func (e *OverAllocationError) Unwrap() error {
	return ErrOverAllocation
}

// ContinuityError reports where a recomputed state diverged from the
// committed one.
type ContinuityError struct {
	ObligationIndex int
	Detail          string
	violation       error // ErrAllocationGap or ErrRewrittenHistory
}

func (e *ContinuityError) Error() string {
	return fmt.Sprintf("continuity violation at obligation %d: %s", e.ObligationIndex, e.Detail)
}

func (e *ContinuityError) Unwrap() error {
	return e.violation
}

func gapError(index int, detail string) *ContinuityError {
	return &ContinuityError{ObligationIndex: index, Detail: detail, violation: ErrAllocationGap}
}

func rewriteError(index int, detail string) *ContinuityError {
	return &ContinuityError{ObligationIndex: index, Detail: detail, violation: ErrRewrittenHistory}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInvariantViolation reports whether the error indicates a programming
// defect that must abort the whole commit with no partial state applied.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrOverAllocation) ||
		errors.Is(err, ErrAllocationGap) ||
		errors.Is(err, ErrRewrittenHistory) ||
		errors.Is(err, ErrStateMismatch)
}

// IsValidationError reports whether the error is due to invalid caller input
// or missing configuration, safe to surface as a client error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoItems) ||
		errors.Is(err, ErrNonPositiveBase) ||
		errors.Is(err, ErrPenaltyRateMissing)
}
