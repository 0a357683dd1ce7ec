package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply checks the coupon against the order subtotal at the given instant
// and returns the discount amount to grant.
//
// Validity failures are reported with the most specific sentinel available:
// ErrExpired when the window has closed, ErrExhausted when the usage cap is
// reached, ErrInvalid otherwise (inactive or not yet started). A subtotal
// under the coupon's minimum fails with ErrBelowMinimum.
func Apply(c *Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.IsValid(now) {
		switch {
		case c.Expired(now):
			return decimal.Zero, ErrExpired
		case c.Exhausted():
			return decimal.Zero, ErrExhausted
		default:
			return decimal.Zero, ErrInvalid
		}
	}

	if subtotal.LessThan(c.MinOrderValue) {
		return decimal.Zero, ErrBelowMinimum
	}

	switch c.Kind {
	case KindPercentage:
		return applyPercentage(c, subtotal), nil
	case KindFixed:
		return applyFixed(c, subtotal), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", c.Kind)
	}
}

func applyPercentage(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(c.Value).Div(hundred)
	if c.MaxDiscount != nil && amount.GreaterThan(*c.MaxDiscount) {
		amount = *c.MaxDiscount
	}
	return floorAtZero(amount).Round(2)
}

func applyFixed(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	// A fixed discount never exceeds the product subtotal.
	amount := decimal.Min(c.Value, subtotal)
	return floorAtZero(amount).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
