package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BelowMinimumOrderError indicates the item subtotal does not reach the
// restaurant's configured minimum order value.
type BelowMinimumOrderError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumOrderError) Error() string {
	return fmt.Sprintf("minimum order value is %s", e.Minimum.StringFixed(2))
}

// ItemSubtotal returns (unitPrice + sum of option surcharges) * quantity,
// rounded to cents.
func ItemSubtotal(unitPrice decimal.Decimal, options []SelectedOption, quantity int) decimal.Decimal {
	withOptions := unitPrice
	for _, opt := range options {
		withOptions = withOptions.Add(opt.Surcharge)
	}
	return withOptions.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// ComputeTotals derives the order's final money fields. The discount is
// clamped at the subtotal so the total can drop to the delivery fee but
// never below it.
func ComputeTotals(subtotal, deliveryFee, discount decimal.Decimal) (total, clampedDiscount decimal.Decimal) {
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	discount = discount.Round(2)
	total = subtotal.Add(deliveryFee).Sub(discount).Round(2)
	return total, discount
}
