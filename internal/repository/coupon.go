package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devmaster/delivery-backoffice/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, description, discount_kind, discount_value,
		min_order_value, max_discount, usage_limit, usage_count,
		valid_from, valid_until, active
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	// The usage-cap check is part of the UPDATE's predicate so two
	// concurrent redemptions can never push usage_count past the limit.
	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`
)

var _ coupon.Ledger = (*CouponLedger)(nil)

// CouponLedger implements coupon.Ledger backed by PostgreSQL.
type CouponLedger struct {
	pool *pgxpool.Pool
}

// NewCouponLedger returns a CouponLedger that uses the given pool.
func NewCouponLedger(pool *pgxpool.Pool) *CouponLedger {
	return &CouponLedger{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponLedger) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage bumps the coupon's usage counter, refusing once the cap is
// reached.
func (r *CouponLedger) IncrementUsage(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, couponExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking coupon %d: %w", id, err)
	}
	if !exists {
		return coupon.ErrNotFound
	}
	return coupon.ErrExhausted
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c    coupon.Coupon
		kind string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &kind, &c.Value,
		&c.MinOrderValue, &c.MaxDiscount, &c.UsageLimit, &c.UsageCount,
		&c.ValidFrom, &c.ValidUntil, &c.Active,
	)
	c.Kind = coupon.Kind(kind)
	return c, err
}
