//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/devmaster/delivery-backoffice/internal/domain/coupon"
	"github.com/devmaster/delivery-backoffice/internal/domain/order"
)

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	f := seedFixture(t, ctx, "Lifecycle Trattoria")
	svc := newService()

	o, err := svc.CreateOrder(ctx, order.Actor{}, order.CreateRequest{
		ClientID:          f.clientID,
		RestaurantID:      f.restaurantID,
		DeliveryAddressID: f.addressID,
		PaymentTypeID:     f.paymentTypeID,
		Items:             []order.ItemRequest{{ProductID: f.productID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.NotZero(t, o.ID)
	assert.NotEmpty(t, o.Number)
	assert.True(t, decimal.RequireFromString("55.00").Equal(o.Total), "total %s", o.Total)

	// The stored aggregate round-trips whole.
	stored, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, decimal.RequireFromString("25.00").Equal(stored.Items[0].UnitPrice))
	require.Len(t, stored.History, 1)
	assert.Equal(t, "SYSTEM", stored.History[0].Actor)

	byNumber, err := svc.GetByNumber(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byNumber.ID)

	// Walk the full forward chain.
	for _, target := range []order.Status{
		order.StatusConfirmed, order.StatusPreparing, order.StatusReady,
		order.StatusDispatched, order.StatusDelivered,
	} {
		updated, err := svc.UpdateStatus(ctx, order.Actor{}, o.ID, target, "")
		require.NoError(t, err, "target %s", target)
		assert.Equal(t, target, updated.Status)
	}

	history, err := svc.History(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 6)

	// Delivered is terminal.
	_, err = svc.Cancel(ctx, order.Actor{}, o.ID, "too late")
	var icErr *order.InvalidCancellationError
	require.ErrorAs(t, err, &icErr)
}

func TestOrderWithCoupon(t *testing.T) {
	ctx := context.Background()
	f := seedFixture(t, ctx, "Coupon Cantina")
	couponID := seedCoupon(t, ctx, "TAKE5", nil)
	svc := newService()

	o, err := svc.CreateOrder(ctx, order.Actor{}, order.CreateRequest{
		ClientID:          f.clientID,
		RestaurantID:      f.restaurantID,
		DeliveryAddressID: f.addressID,
		PaymentTypeID:     f.paymentTypeID,
		CouponCode:        "take5",
		Items:             []order.ItemRequest{{ProductID: f.productID, Quantity: 2}},
	})
	require.NoError(t, err)

	require.NotNil(t, o.Redemption)
	assert.Equal(t, couponID, o.Redemption.CouponID)
	assert.True(t, decimal.RequireFromString("5.00").Equal(o.Discount))
	assert.True(t, decimal.RequireFromString("50.00").Equal(o.Total), "total %s", o.Total)

	var usageCount int
	err = pool.QueryRow(ctx, `SELECT usage_count FROM coupons WHERE id = $1`, couponID).Scan(&usageCount)
	require.NoError(t, err)
	assert.Equal(t, 1, usageCount)
}

func TestCouponCapUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	f := seedFixture(t, ctx, "Cap Cafe")
	limit := 3
	couponID := seedCoupon(t, ctx, "SCARCE", &limit)
	svc := newService()

	const attempts = 10
	results := make(chan error, attempts)

	var g errgroup.Group
	for range attempts {
		g.Go(func() error {
			_, err := svc.CreateOrder(ctx, order.Actor{}, order.CreateRequest{
				ClientID:          f.clientID,
				RestaurantID:      f.restaurantID,
				DeliveryAddressID: f.addressID,
				PaymentTypeID:     f.paymentTypeID,
				CouponCode:        "SCARCE",
				Items:             []order.ItemRequest{{ProductID: f.productID, Quantity: 1}},
			})
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var succeeded, exhausted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, coupon.ErrExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, limit, succeeded, "exactly the cap may redeem")
	assert.Equal(t, attempts-limit, exhausted)

	var usageCount int
	err := pool.QueryRow(ctx, `SELECT usage_count FROM coupons WHERE id = $1`, couponID).Scan(&usageCount)
	require.NoError(t, err)
	assert.Equal(t, limit, usageCount, "usage count never overshoots")

	var orderCount int
	err = pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE restaurant_id = $1`, f.restaurantID).Scan(&orderCount)
	require.NoError(t, err)
	assert.Equal(t, limit, orderCount, "exhausted attempts persist nothing")
}
