// Package order implements the order aggregate: line items with option
// snapshots, coupon redemption, pricing, and the status lifecycle with its
// audit history.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusConfirmed            Status = "CONFIRMED"
	StatusPreparing            Status = "PREPARING"
	StatusReady                Status = "READY"
	StatusDispatched           Status = "DISPATCHED"
	StatusDelivered            Status = "DELIVERED"
	StatusCancelled            Status = "CANCELLED"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingConfirmation, StatusConfirmed, StatusPreparing,
		StatusReady, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentStatus tracks payment approval independently of the order status.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRefused  PaymentStatus = "REFUSED"
)

// Actor identifies who performed an operation. The zero value is the
// system actor used by unauthenticated flows (public checkout, webhooks).
type Actor struct {
	ID    uuid.UUID
	Valid bool
}

// ActorID wraps a user id into an authenticated Actor.
func ActorID(id uuid.UUID) Actor {
	return Actor{ID: id, Valid: true}
}

// String renders the actor for audit records, substituting the system
// sentinel when no authenticated identity is present.
func (a Actor) String() string {
	if !a.Valid {
		return "SYSTEM"
	}
	return a.ID.String()
}

// Order is the root aggregate. Money fields are derived: Total is always
// Subtotal + DeliveryFee - Discount, recomputed on creation and never set
// by hand.
type Order struct {
	ID     int64
	Number string

	ClientID          int64
	RestaurantID      int64
	DeliveryAddressID int64
	PaymentTypeID     int64

	Status        Status
	PaymentStatus PaymentStatus

	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	ChangeDue   *decimal.Decimal

	Notes        string
	CancelReason string

	EstimatedDelivery time.Time
	CreatedAt         time.Time
	ConfirmedAt       *time.Time
	PreparingAt       *time.Time
	ReadyAt           *time.Time
	DispatchedAt      *time.Time
	DeliveredAt       *time.Time
	CancelledAt       *time.Time

	Items      []Item
	Redemption *Redemption
	History    []HistoryEntry
}

// Item is an order line. UnitPrice is a snapshot of the product's
// effective price at creation time and is never re-derived from the
// catalog afterwards.
type Item struct {
	ID        int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Notes     string
	Options   []ItemOption
}

// ItemOption records one selected option with its surcharge snapshot.
type ItemOption struct {
	ID        int64
	GroupID   int64
	OptionID  int64
	Surcharge decimal.Decimal
}

// Redemption is the immutable record of a coupon's effect on this order.
// The captured discount is immune to later coupon edits.
type Redemption struct {
	CouponID int64
	Code     string
	Discount decimal.Decimal
}

// HistoryEntry is one append-only audit record. Entries are never updated
// or deleted; one is written per transition, including creation.
type HistoryEntry struct {
	ID        int64
	Status    Status
	Note      string
	Actor     string
	CreatedAt time.Time
}

// Repository sentinel errors.
var (
	// ErrNotFound is returned when no order matches the given id or number.
	ErrNotFound = errors.New("order not found")
	// ErrNumberTaken is returned by Create when the order number collides
	// with an existing order at insert time.
	ErrNumberTaken = errors.New("order number already taken")
)

// Repository persists order aggregates.
type Repository interface {
	// Create persists the whole aggregate (order, items, options, coupon
	// redemption, initial history entry) in one transaction. It returns
	// ErrNumberTaken on an order-number collision and coupon.ErrExhausted
	// when the redeemed coupon's usage cap was reached concurrently; in
	// both cases nothing is persisted.
	Create(ctx context.Context, o *Order) error

	// NumberExists reports whether an order already holds the given number.
	NumberExists(ctx context.Context, number string) (bool, error)

	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)

	// Update persists the order's mutable fields (status, payment status,
	// timestamps, cancel reason) and, when entry is non-nil, appends it to
	// the status history in the same transaction.
	Update(ctx context.Context, o *Order, entry *HistoryEntry) error

	History(ctx context.Context, orderID int64) ([]HistoryEntry, error)

	ListByRestaurant(ctx context.Context, restaurantID int64, status *Status) ([]Order, error)
	ListByClient(ctx context.Context, clientID int64, status *Status) ([]Order, error)
	ListByPeriod(ctx context.Context, restaurantID int64, from, to time.Time) ([]Order, error)
}
