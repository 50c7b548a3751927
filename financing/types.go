/*
Package financing layers the customer-financing domain on top of the engine.

PURPOSE:
  Where package engine is pure algorithm, this package owns the domain
  objects and their lifecycle: a finance application built from a quotation,
  the payment schedule it produces on approval, payment commits that run
  engine -> continuity check -> materializer, read-only payment previews,
  overdue reporting and the daily penalty accrual batch.

KEY CONCEPTS:
  - Application: requested terms (down payment, interest, fee) plus the
    planned installments; approving one builds a Schedule.
  - Schedule: the living aggregate - down payment + installments with
    paid/pending state and payment references, plus the append-only list of
    accepted payments.
  - Service: store-backed entry points (CommitPayment, SimulatePayment,
    OverdueReport, RunPenaltyBatch).

SEE ALSO:
  - application.go: terms, financed items, installment planning
  - schedule.go: the aggregate and its recomputation
  - service.go: store-backed operations
*/
package financing

import "errors"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ApplicationID string
type ScheduleID string

// =============================================================================
// STATUS
// =============================================================================

// ApplicationStatus is the application's workflow position.
type ApplicationStatus string

const (
	ApplicationDraft    ApplicationStatus = "draft"
	ApplicationApproved ApplicationStatus = "approved"
)

// ScheduleStatus is derived from installment state on every recomputation.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleOverdue   ScheduleStatus = "overdue"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrApplicationNotFound is returned when a referenced application doesn't exist.
	ErrApplicationNotFound = errors.New("finance application not found")

	// ErrScheduleNotFound is returned when a referenced schedule doesn't exist.
	ErrScheduleNotFound = errors.New("payment schedule not found")

	// ErrDuplicatePayment is returned when a payment identifier was already
	// recorded on the schedule. Expected on client retries.
	ErrDuplicatePayment = errors.New("payment already recorded")

	// ErrInvalidPayment is returned for a payment with a missing identifier
	// or non-positive amount.
	ErrInvalidPayment = errors.New("invalid payment")

	// ErrNoInstallments is returned when approving an application whose
	// installments were never planned.
	ErrNoInstallments = errors.New("application has no planned installments")

	// ErrAlreadyApproved is returned when approving an application twice.
	ErrAlreadyApproved = errors.New("application already approved")

	// ErrScheduleNotOpen is returned when paying into a cancelled or
	// completed schedule.
	ErrScheduleNotOpen = errors.New("schedule does not accept payments")

	// ErrFinancedTotalMismatch is returned when the financed items' total
	// drifts from original total + interest beyond a 1-cent tolerance.
	ErrFinancedTotalMismatch = errors.New("financed items total does not match original total plus interest")
)
