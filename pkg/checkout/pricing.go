package checkout

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricedLine is a line with its unit price resolved.
type PricedLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals are the money amounts of a checkout, rounded to cents.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals sums the lines and adds shipping; orders at or above
// freeThreshold ship for free.
func ComputeTotals(lines []PricedLine, freeThreshold, fee decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = subtotal.Round(2)
	shipping := fee.Round(2)
	if subtotal.GreaterThanOrEqual(freeThreshold) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
	}
}

// ToMinorUnits converts an amount to cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
