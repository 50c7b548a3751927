package engine_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/financing-engine/engine"
)

func item(code string, qty, rate float64) engine.LineItem {
	q := decimal.NewFromFloat(qty)
	r := decimal.NewFromFloat(rate)
	return engine.LineItem{Code: code, Qty: q, Rate: r, Amount: r.Mul(q)}
}

func TestDistributeInterest_ProportionalShares(t *testing.T) {
	// GIVEN: base amounts [300, 300, 400], total interest 100
	// THEN: shares are [30, 30, 40] and sum exactly to 100

	items := []engine.LineItem{
		item("A", 1, 300),
		item("B", 1, 300),
		item("C", 1, 400),
	}

	financed, err := engine.DistributeInterest(items, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantAmounts := []string{"330", "330", "440"}
	total := decimal.Zero
	for i, f := range financed {
		if !f.Amount.Equal(decimal.RequireFromString(wantAmounts[i])) {
			t.Errorf("item %s amount = %s, want %s", f.Code, f.Amount, wantAmounts[i])
		}
		total = total.Add(f.Amount)
	}
	if !total.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("financed total = %s, want 1100", total)
	}
}

func TestDistributeInterest_LastItemAbsorbsRemainder(t *testing.T) {
	// GIVEN: three equal items and an interest amount that does not divide evenly
	// THEN: the distributed shares still sum exactly to the input interest

	items := []engine.LineItem{
		item("A", 1, 100),
		item("B", 1, 100),
		item("C", 1, 100),
	}
	interest := decimal.NewFromFloat(100)

	financed, err := engine.DistributeInterest(items, interest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	distributed := decimal.Zero
	for i, f := range financed {
		distributed = distributed.Add(f.Amount.Sub(items[i].Amount))
	}
	if !distributed.Equal(interest) {
		t.Errorf("distributed interest = %s, want exactly %s", distributed, interest)
	}
}

func TestDistributeInterest_PerUnitRate(t *testing.T) {
	// GIVEN: an item with qty 4 receiving a 20 share
	// THEN: the per-unit rate rises by 5 and amount is recomputed from it

	items := []engine.LineItem{
		item("A", 4, 100), // amount 400
		item("B", 1, 100), // amount 100
	}
	financed, err := engine.DistributeInterest(items, decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !financed[0].Rate.Equal(decimal.NewFromInt(105)) {
		t.Errorf("item A rate = %s, want 105", financed[0].Rate)
	}
	if !financed[0].Amount.Equal(decimal.NewFromInt(420)) {
		t.Errorf("item A amount = %s, want 420", financed[0].Amount)
	}
}

func TestDistributeInterest_NoItems(t *testing.T) {
	_, err := engine.DistributeInterest(nil, decimal.NewFromInt(100))
	if !errors.Is(err, engine.ErrNoItems) {
		t.Fatalf("err = %v, want ErrNoItems", err)
	}
	if !engine.IsValidationError(err) {
		t.Error("ErrNoItems not classified as validation error")
	}
}

func TestDistributeInterest_ZeroInterest(t *testing.T) {
	financed, err := engine.DistributeInterest([]engine.LineItem{item("A", 1, 100)}, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if financed != nil {
		t.Errorf("zero interest should produce no financed items, got %+v", financed)
	}
}

func TestDistributeInterest_NonPositiveBase(t *testing.T) {
	items := []engine.LineItem{item("A", 1, 0)}
	_, err := engine.DistributeInterest(items, decimal.NewFromInt(10))
	if !errors.Is(err, engine.ErrNonPositiveBase) {
		t.Fatalf("err = %v, want ErrNonPositiveBase", err)
	}
}
