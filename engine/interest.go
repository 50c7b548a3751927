/*
interest.go - Proportional interest distribution over priced line items

PURPOSE:
  Apportions a lump interest amount across quotation line items in proportion
  to each item's base amount, so the financed document carries the interest
  inside the item prices instead of as a separate charge.

EXACTNESS:
  Every item except the last gets its proportional share rounded half-to-even
  to 2 decimals. The LAST item gets the remainder (total minus distributed),
  never its own proportional share, so the distributed total equals the input
  interest exactly regardless of intermediate rounding.
*/
package engine

import "github.com/shopspring/decimal"

// DistributeInterest returns a copy of items with each rate/amount increased
// by the item's interest share. A non-positive totalInterest means there is
// nothing to apply and yields a nil list. Validation failures: ErrNoItems,
// ErrNonPositiveBase.
func DistributeInterest(items []LineItem, totalInterest decimal.Decimal) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if totalInterest.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	totalBase := decimal.Zero
	for _, item := range items {
		totalBase = totalBase.Add(item.Amount)
	}
	if totalBase.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveBase
	}

	financed := make([]LineItem, 0, len(items))
	distributed := decimal.Zero

	for i, item := range items {
		var share decimal.Decimal
		if i == len(items)-1 {
			// Last item absorbs the rounding remainder.
			share = totalInterest.Sub(distributed)
		} else {
			share = item.Amount.Div(totalBase).Mul(totalInterest).RoundBank(2)
			distributed = distributed.Add(share)
		}

		perUnit := share.Div(item.Qty)
		rate := item.Rate.Add(perUnit)

		financed = append(financed, LineItem{
			Code:   item.Code,
			Name:   item.Name,
			Qty:    item.Qty,
			Rate:   rate,
			Amount: rate.Mul(item.Qty),
		})
	}

	return financed, nil
}
