package engine

import "github.com/shopspring/decimal"

// =============================================================================
// CENTS - Fixed-point minor-unit money
// =============================================================================

// Cents is an integer count of currency minor units. All allocation
// arithmetic runs on Cents so that "fully consumed" is an exact integer
// comparison, never a float-epsilon check.
type Cents int64

var centsPerUnit = decimal.NewFromInt(100)

// ToCents converts a decimal amount to minor units, rounding half-to-even
// exactly once. ToCents(FromCents(x)) == x for all x.
func ToCents(amount decimal.Decimal) Cents {
	return Cents(amount.Mul(centsPerUnit).RoundBank(0).IntPart())
}

// FromCents converts minor units back to a decimal amount. Exact; for display
// and external contracts only.
func FromCents(c Cents) decimal.Decimal {
	return decimal.New(int64(c), -2)
}
