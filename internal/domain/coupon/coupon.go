// Package coupon holds coupon definitions and the discount rules applied
// to an order subtotal.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage discounts a percentage of the order subtotal,
	// optionally clamped by MaxDiscount.
	KindPercentage Kind = "PERCENTAGE"
	// KindFixed discounts a fixed amount, clamped at the order subtotal.
	KindFixed Kind = "FIXED"
)

var (
	// ErrNotFound is returned when no coupon matches the given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInvalid is returned when a coupon exists but is inactive or has
	// not entered its validity window yet.
	ErrInvalid = errors.New("coupon invalid")
	// ErrExpired is returned when a coupon is past its validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when a coupon has reached its usage limit.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrBelowMinimum is returned when the order subtotal does not reach
	// the coupon's minimum order value.
	ErrBelowMinimum = errors.New("order below coupon minimum")
)

// Coupon is a discount definition with an eligibility window and an
// optional usage cap. The persisted UsageCount is mutated only through
// Ledger.IncrementUsage.
type Coupon struct {
	ID            int64
	Code          string
	Description   string
	Kind          Kind
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   *decimal.Decimal
	UsageLimit    *int
	UsageCount    int
	ValidFrom     time.Time
	ValidUntil    time.Time
	Active        bool
}

// IsValid reports whether the coupon can be redeemed at the given instant:
// active, inside [ValidFrom, ValidUntil), and under its usage cap.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.Active &&
		!now.Before(c.ValidFrom) &&
		now.Before(c.ValidUntil) &&
		!c.Exhausted()
}

// Expired reports whether the validity window has closed.
func (c *Coupon) Expired(now time.Time) bool {
	return !now.Before(c.ValidUntil)
}

// Exhausted reports whether the usage cap, if any, has been reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// NormalizeCode maps a user-supplied code to its canonical form. Codes are
// case-insensitive and stored uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Ledger provides coupon lookup and race-safe redemption counting.
type Ledger interface {
	// FindByCode resolves a coupon by canonical code, returning ErrNotFound
	// on a miss.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUsage bumps the persisted usage counter by one as an atomic
	// conditional update against the stored row. It returns ErrExhausted,
	// without incrementing, when the usage cap has already been reached.
	IncrementUsage(ctx context.Context, id int64) error
}
