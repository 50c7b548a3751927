/*
penalty.go - Overdue penalty accrual

PURPOSE:
  Computes the penalty on an unpaid installment from how long it is overdue.
  Two period policies exist in the domain and disagree near month boundaries,
  so the choice is configuration, not code:

    fixed-30-day:   whole 30-day blocks elapsed after a grace window
    calendar-month: whole calendar months elapsed (date arithmetic), the
                    grace window shifting the due date before counting

  penalty = pending_principal * rate_per_period * periods_overdue, rounded
  half-to-even to 2 decimals. The engine never mutates obligations with the
  result; applying it is the schedule's job.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodPolicy selects how overdue time is bucketed into penalty periods.
type PeriodPolicy string

const (
	PeriodPolicyFixed30       PeriodPolicy = "fixed-30-day"
	PeriodPolicyCalendarMonth PeriodPolicy = "calendar-month"
)

// Valid reports whether the policy is one of the supported variants.
func (p PeriodPolicy) Valid() bool {
	return p == PeriodPolicyFixed30 || p == PeriodPolicyCalendarMonth
}

// PenaltyConfig is the externally supplied penalty policy. It is passed
// explicitly on every accrual - never read from a global.
type PenaltyConfig struct {
	// RatePerPeriod is the fraction charged per overdue period,
	// e.g. 0.05 for 5% per month.
	RatePerPeriod decimal.Decimal

	// GraceDays postpones the start of penalty counting past the due date.
	// It shifts the effective due date under both period policies.
	GraceDays int

	// Policy picks the period bucketing.
	Policy PeriodPolicy
}

// Validate checks that the config is usable.
func (c PenaltyConfig) Validate() error {
	if c.RatePerPeriod.LessThanOrEqual(decimal.Zero) {
		return ErrPenaltyRateMissing
	}
	if !c.Policy.Valid() {
		return ErrPenaltyRateMissing
	}
	return nil
}

// AccruePenalty computes the penalty owed on pendingPrincipal given how far
// past dueDate today is. Zero when nothing is pending, when the due date has
// not passed, or when no whole period has elapsed yet.
func AccruePenalty(cfg PenaltyConfig, dueDate, today time.Time, pendingPrincipal decimal.Decimal) (decimal.Decimal, error) {
	if err := cfg.Validate(); err != nil {
		return decimal.Zero, err
	}
	if pendingPrincipal.LessThanOrEqual(decimal.Zero) || !dueDate.Before(today) {
		return decimal.Zero, nil
	}

	periods := cfg.periodsOverdue(dueDate, today)
	if periods <= 0 {
		return decimal.Zero, nil
	}

	penalty := pendingPrincipal.
		Mul(cfg.RatePerPeriod).
		Mul(decimal.NewFromInt(int64(periods))).
		RoundBank(2)
	return penalty, nil
}

func (c PenaltyConfig) periodsOverdue(dueDate, today time.Time) int {
	effectiveDue := dueDate.AddDate(0, 0, c.GraceDays)
	switch c.Policy {
	case PeriodPolicyCalendarMonth:
		return wholeMonthsBetween(effectiveDue, today)
	default:
		overdueDays := int(today.Sub(effectiveDue).Hours() / 24)
		if overdueDays <= 0 {
			return 0
		}
		return overdueDays / 30
	}
}

// wholeMonthsBetween counts full calendar months from from to to, the way
// date arithmetic does it: month difference, minus one if the day of month
// has not been reached yet.
func wholeMonthsBetween(from, to time.Time) int {
	if !from.Before(to) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
