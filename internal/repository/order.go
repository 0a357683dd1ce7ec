package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/devmaster/delivery-backoffice/internal/domain/coupon"
	"github.com/devmaster/delivery-backoffice/internal/domain/order"
)

const (
	orderColumns = `id, order_number, client_id, restaurant_id, delivery_address_id, payment_type_id,
		status, payment_status, subtotal, delivery_fee, discount, total, change_due,
		notes, cancel_reason, estimated_delivery, created_at,
		confirmed_at, preparing_at, ready_at, dispatched_at, delivered_at, cancelled_at`

	insertOrderSQL = `INSERT INTO orders (order_number, client_id, restaurant_id, delivery_address_id,
		payment_type_id, status, payment_status, subtotal, delivery_fee, discount, total,
		change_due, notes, cancel_reason, estimated_delivery, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, notes)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	insertItemOptionSQL = `INSERT INTO order_item_options (item_id, group_id, option_id, surcharge)
		VALUES ($1, $2, $3, $4)`

	insertOrderCouponSQL = `INSERT INTO order_coupons (order_id, coupon_id, discount)
		VALUES ($1, $2, $3)`

	insertHistorySQL = `INSERT INTO order_status_history (order_id, status, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	numberExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`

	getOrderByIDSQL     = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	updateOrderSQL = `UPDATE orders SET status = $2, payment_status = $3, cancel_reason = $4,
		confirmed_at = $5, preparing_at = $6, ready_at = $7,
		dispatched_at = $8, delivered_at = $9, cancelled_at = $10
		WHERE id = $1`

	getItemsSQL = `SELECT id, product_id, quantity, unit_price, subtotal, notes
		FROM order_items WHERE order_id = $1 ORDER BY id`

	getItemOptionsSQL = `SELECT id, item_id, group_id, option_id, surcharge
		FROM order_item_options WHERE item_id = ANY($1) ORDER BY id`

	getRedemptionSQL = `SELECT oc.coupon_id, c.code, oc.discount
		FROM order_coupons oc JOIN coupons c ON c.id = oc.coupon_id
		WHERE oc.order_id = $1`

	getHistorySQL = `SELECT id, status, note, actor, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id`

	listByRestaurantSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE restaurant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC`

	listByClientSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE client_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC`

	listByPeriodSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE restaurant_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the whole aggregate in one transaction: the order row,
// its items and option snapshots, the coupon redemption with its usage
// increment, and the initial history entries. A lost order-number race
// surfaces as order.ErrNumberTaken; a lost coupon-cap race as
// coupon.ErrExhausted. Either way the transaction rolls back whole.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.Number, o.ClientID, o.RestaurantID, o.DeliveryAddressID, o.PaymentTypeID,
		o.Status, o.PaymentStatus, o.Subtotal, o.DeliveryFee, o.Discount, o.Total,
		o.ChangeDue, o.Notes, o.CancelReason, o.EstimatedDelivery, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return order.ErrNumberTaken
		}
		return fmt.Errorf("inserting order %q: %w", o.Number, err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		err = tx.QueryRow(ctx, insertOrderItemSQL,
			o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal, item.Notes,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("inserting order item: %w", err)
		}

		for _, opt := range item.Options {
			_, err = tx.Exec(ctx, insertItemOptionSQL,
				item.ID, opt.GroupID, opt.OptionID, opt.Surcharge,
			)
			if err != nil {
				return fmt.Errorf("inserting item option: %w", err)
			}
		}
	}

	if o.Redemption != nil {
		tag, err := tx.Exec(ctx, incrementCouponUsageSQL, o.Redemption.CouponID)
		if err != nil {
			return fmt.Errorf("incrementing usage for coupon %d: %w", o.Redemption.CouponID, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrExhausted
		}

		_, err = tx.Exec(ctx, insertOrderCouponSQL, o.ID, o.Redemption.CouponID, o.Redemption.Discount)
		if err != nil {
			return fmt.Errorf("inserting order coupon: %w", err)
		}
	}

	for _, entry := range o.History {
		_, err = tx.Exec(ctx, insertHistorySQL,
			o.ID, entry.Status, entry.Note, entry.Actor, entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting status history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.Number, err)
	}
	return nil
}

// NumberExists reports whether an order already holds the given number.
func (r *OrderRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, numberExistsSQL, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order number %q: %w", number, err)
	}
	return exists, nil
}

// GetByID returns the full order aggregate by id.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.getOrder(ctx, getOrderByIDSQL, id)
}

// GetByNumber returns the full order aggregate by its human-facing number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOrder(ctx, getOrderByNumberSQL, number)
}

func (r *OrderRepository) getOrder(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	if err := r.loadAggregate(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) loadAggregate(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getItemsSQL, o.ID)
	if err != nil {
		return fmt.Errorf("listing items for order %d: %w", o.ID, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.Notes)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("listing items for order %d: %w", o.ID, err)
	}

	if len(o.Items) > 0 {
		itemIdx := make(map[int64]*order.Item, len(o.Items))
		itemIDs := make([]int64, 0, len(o.Items))
		for i := range o.Items {
			itemIdx[o.Items[i].ID] = &o.Items[i]
			itemIDs = append(itemIDs, o.Items[i].ID)
		}

		rows, err = r.pool.Query(ctx, getItemOptionsSQL, itemIDs)
		if err != nil {
			return fmt.Errorf("listing item options for order %d: %w", o.ID, err)
		}
		options, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (itemOptionRow, error) {
			var opt itemOptionRow
			err := row.Scan(&opt.ID, &opt.ItemID, &opt.GroupID, &opt.OptionID, &opt.Surcharge)
			return opt, err
		})
		if err != nil {
			return fmt.Errorf("listing item options for order %d: %w", o.ID, err)
		}
		for _, opt := range options {
			item := itemIdx[opt.ItemID]
			item.Options = append(item.Options, order.ItemOption{
				ID: opt.ID, GroupID: opt.GroupID, OptionID: opt.OptionID, Surcharge: opt.Surcharge,
			})
		}
	}

	var red order.Redemption
	err = r.pool.QueryRow(ctx, getRedemptionSQL, o.ID).Scan(&red.CouponID, &red.Code, &red.Discount)
	switch {
	case err == nil:
		o.Redemption = &red
	case errors.Is(err, pgx.ErrNoRows):
		// no coupon on this order
	default:
		return fmt.Errorf("getting redemption for order %d: %w", o.ID, err)
	}

	o.History, err = r.History(ctx, o.ID)
	return err
}

// Update persists the order's mutable fields and, when entry is non-nil,
// appends it to the status history in the same transaction.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order, entry *order.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, updateOrderSQL,
		o.ID, o.Status, o.PaymentStatus, o.CancelReason,
		o.ConfirmedAt, o.PreparingAt, o.ReadyAt,
		o.DispatchedAt, o.DeliveredAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	if entry != nil {
		_, err = tx.Exec(ctx, insertHistorySQL,
			o.ID, entry.Status, entry.Note, entry.Actor, entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting status history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %d update: %w", o.ID, err)
	}
	return nil
}

// History returns the order's status history, oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID int64) ([]order.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, getHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing history for order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.HistoryEntry, error) {
		var e order.HistoryEntry
		err := row.Scan(&e.ID, &e.Status, &e.Note, &e.Actor, &e.CreatedAt)
		return e, err
	})
}

// ListByRestaurant returns a restaurant's orders, newest first. Listed
// orders carry header fields only; items and history are loaded on a
// single-order read.
func (r *OrderRepository) ListByRestaurant(ctx context.Context, restaurantID int64, status *order.Status) ([]order.Order, error) {
	return r.list(ctx, listByRestaurantSQL, restaurantID, statusArg(status))
}

// ListByClient returns a client's orders, newest first.
func (r *OrderRepository) ListByClient(ctx context.Context, clientID int64, status *order.Status) ([]order.Order, error) {
	return r.list(ctx, listByClientSQL, clientID, statusArg(status))
}

// ListByPeriod returns a restaurant's orders created within [from, to].
func (r *OrderRepository) ListByPeriod(ctx context.Context, restaurantID int64, from, to time.Time) ([]order.Order, error) {
	return r.list(ctx, listByPeriodSQL, restaurantID, from, to)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

type itemOptionRow struct {
	ID        int64
	ItemID    int64
	GroupID   int64
	OptionID  int64
	Surcharge decimal.Decimal
}

func statusArg(status *order.Status) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.ClientID, &o.RestaurantID, &o.DeliveryAddressID, &o.PaymentTypeID,
		&status, &paymentStatus, &o.Subtotal, &o.DeliveryFee, &o.Discount, &o.Total, &o.ChangeDue,
		&o.Notes, &o.CancelReason, &o.EstimatedDelivery, &o.CreatedAt,
		&o.ConfirmedAt, &o.PreparingAt, &o.ReadyAt, &o.DispatchedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, err
}
