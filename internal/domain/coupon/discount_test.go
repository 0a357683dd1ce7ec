package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func activeCoupon(kind Kind, value string) *Coupon {
	return &Coupon{
		ID:         1,
		Code:       "SAVE",
		Kind:       kind,
		Value:      dec(value),
		ValidFrom:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:     true,
	}
}

func TestApply(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		coupon   *Coupon
		subtotal string
		want     string
		wantErr  error
	}{
		{
			name:     "percentage without cap",
			coupon:   activeCoupon(KindPercentage, "10"),
			subtotal: "100.00",
			want:     "10.00",
		},
		{
			name: "percentage clamped by max discount",
			coupon: func() *Coupon {
				c := activeCoupon(KindPercentage, "50")
				c.MaxDiscount = decPtr("20.00")
				return c
			}(),
			subtotal: "100.00",
			want:     "20.00",
		},
		{
			name: "percentage under max discount keeps computed value",
			coupon: func() *Coupon {
				c := activeCoupon(KindPercentage, "10")
				c.MaxDiscount = decPtr("50.00")
				return c
			}(),
			subtotal: "100.00",
			want:     "10.00",
		},
		{
			name:     "fixed discount",
			coupon:   activeCoupon(KindFixed, "5"),
			subtotal: "50.00",
			want:     "5.00",
		},
		{
			name:     "fixed discount clamped at subtotal",
			coupon:   activeCoupon(KindFixed, "30"),
			subtotal: "20.00",
			want:     "20.00",
		},
		{
			name: "subtotal below coupon minimum",
			coupon: func() *Coupon {
				c := activeCoupon(KindFixed, "5")
				c.MinOrderValue = dec("40.00")
				return c
			}(),
			subtotal: "30.00",
			wantErr:  ErrBelowMinimum,
		},
		{
			name: "expired coupon",
			coupon: func() *Coupon {
				c := activeCoupon(KindPercentage, "10")
				c.ValidUntil = now.Add(-time.Hour)
				return c
			}(),
			subtotal: "100.00",
			wantErr:  ErrExpired,
		},
		{
			name: "expiry boundary is exclusive",
			coupon: func() *Coupon {
				c := activeCoupon(KindPercentage, "10")
				c.ValidUntil = now
				return c
			}(),
			subtotal: "100.00",
			wantErr:  ErrExpired,
		},
		{
			name: "usage limit reached",
			coupon: func() *Coupon {
				c := activeCoupon(KindPercentage, "10")
				c.UsageLimit = intPtr(3)
				c.UsageCount = 3
				return c
			}(),
			subtotal: "100.00",
			wantErr:  ErrExhausted,
		},
		{
			name: "inactive coupon",
			coupon: func() *Coupon {
				c := activeCoupon(KindPercentage, "10")
				c.Active = false
				return c
			}(),
			subtotal: "100.00",
			wantErr:  ErrInvalid,
		},
		{
			name: "not yet started",
			coupon: func() *Coupon {
				c := activeCoupon(KindPercentage, "10")
				c.ValidFrom = now.Add(time.Hour)
				return c
			}(),
			subtotal: "100.00",
			wantErr:  ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.coupon, dec(tt.subtotal), now)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got),
				"want %s, got %s", tt.want, got)
		})
	}
}

func TestCoupon_IsValid(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	c := activeCoupon(KindPercentage, "10")
	assert.True(t, c.IsValid(now))

	// Window start is inclusive.
	c.ValidFrom = now
	assert.True(t, c.IsValid(now))

	// Unlimited usage when no cap is configured.
	c.UsageCount = 1_000_000
	assert.True(t, c.IsValid(now))

	c.UsageLimit = intPtr(5)
	assert.False(t, c.IsValid(now))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
	assert.Equal(t, "SAVE10", NormalizeCode("Save10"))
}
