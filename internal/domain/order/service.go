package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/devmaster/delivery-backoffice/internal/domain/catalog"
	"github.com/devmaster/delivery-backoffice/internal/domain/coupon"
	"github.com/devmaster/delivery-backoffice/internal/domain/party"
)

const (
	// maxNumberAttempts bounds the order-number generation retry loop.
	maxNumberAttempts = 5
	// fallbackPrepMinutes is used when a restaurant has no configured
	// average preparation time.
	fallbackPrepMinutes = 45
)

// Sentinel errors for order creation guards.
var (
	ErrEmptyItems         = errors.New("items required")
	ErrAddressOwnership   = errors.New("address does not belong to the client")
	ErrRestaurantInactive = errors.New("restaurant inactive")
	ErrRestaurantClosed   = errors.New("restaurant closed")
	// ErrNumberAttempts is returned when no unique order number could be
	// allocated within the retry budget.
	ErrNumberAttempts = errors.New("could not allocate a unique order number")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// ProductUnavailableError indicates a requested product is switched off in
// the catalog.
type ProductUnavailableError struct {
	Product string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product unavailable: %s", e.Product)
}

// ProductRestaurantMismatchError indicates a requested product belongs to
// a different restaurant than the order.
type ProductRestaurantMismatchError struct {
	ProductID int64
}

func (e *ProductRestaurantMismatchError) Error() string {
	return fmt.Sprintf("product %d does not belong to the restaurant", e.ProductID)
}

// ItemRequest is one requested line item.
type ItemRequest struct {
	ProductID int64
	Quantity  int
	Notes     string
	Options   []Selection
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	ClientID          int64
	RestaurantID      int64
	DeliveryAddressID int64
	PaymentTypeID     int64
	Items             []ItemRequest
	CouponCode        string
	// DeliveryFee overrides the restaurant's configured fee when an
	// external fee calculation has already produced a distance-based one.
	DeliveryFee *decimal.Decimal
	ChangeDue   *decimal.Decimal
	Notes       string
}

// Service composes catalog, party, and coupon collaborators into the
// order use cases: creation, status transitions, and reads.
type Service struct {
	catalog catalog.Lookup
	parties party.Lookup
	coupons coupon.Ledger
	orders  Repository

	now       func() time.Time
	newNumber func() string
}

// NewService creates an order Service with the required collaborators.
func NewService(cat catalog.Lookup, parties party.Lookup, coupons coupon.Ledger, orders Repository) *Service {
	return &Service{
		catalog:   cat,
		parties:   parties,
		coupons:   coupons,
		orders:    orders,
		now:       time.Now,
		newNumber: NewNumber,
	}
}

// CreateOrder validates the request, prices the items with their option
// snapshots, applies the coupon, and persists the whole aggregate in one
// all-or-nothing call. Any guard failure aborts the creation with nothing
// persisted.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	client, err := s.parties.Client(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.parties.Restaurant(ctx, req.RestaurantID)
	if err != nil {
		return nil, err
	}
	address, err := s.parties.Address(ctx, req.DeliveryAddressID)
	if err != nil {
		return nil, err
	}
	paymentType, err := s.parties.PaymentType(ctx, req.PaymentTypeID)
	if err != nil {
		return nil, err
	}

	if address.OwnerClientID != client.ID {
		return nil, ErrAddressOwnership
	}
	if !restaurant.Active {
		return nil, ErrRestaurantInactive
	}
	if !restaurant.Open {
		return nil, ErrRestaurantClosed
	}

	now := s.now()

	deliveryFee := restaurant.DeliveryFee
	if req.DeliveryFee != nil {
		deliveryFee = *req.DeliveryFee
	}

	items, subtotal, err := s.buildItems(ctx, restaurant.ID, req.Items)
	if err != nil {
		return nil, err
	}

	var redemption *Redemption
	discount := decimal.Zero
	if req.CouponCode != "" {
		redemption, err = s.applyCoupon(ctx, req.CouponCode, subtotal, now)
		if err != nil {
			return nil, err
		}
		discount = redemption.Discount
	}

	// The minimum-order guard runs on the accumulated subtotal, after the
	// coupon is resolved and before any totals are persisted.
	if subtotal.LessThan(restaurant.MinOrderValue) {
		return nil, &BelowMinimumOrderError{Minimum: restaurant.MinOrderValue}
	}

	total, discount := ComputeTotals(subtotal, deliveryFee, discount)
	if redemption != nil {
		redemption.Discount = discount
	}

	o := &Order{
		ClientID:          client.ID,
		RestaurantID:      restaurant.ID,
		DeliveryAddressID: address.ID,
		PaymentTypeID:     paymentType.ID,
		Status:            StatusAwaitingConfirmation,
		PaymentStatus:     PaymentPending,
		Subtotal:          subtotal.Round(2),
		DeliveryFee:       deliveryFee.Round(2),
		Discount:          discount,
		Total:             total,
		ChangeDue:         req.ChangeDue,
		Notes:             req.Notes,
		EstimatedDelivery: estimateDelivery(restaurant, now),
		CreatedAt:         now,
		Items:             items,
		Redemption:        redemption,
		History: []HistoryEntry{{
			Status:    StatusAwaitingConfirmation,
			Note:      "order created",
			Actor:     actor.String(),
			CreatedAt: now,
		}},
	}

	if err := s.persistWithNumber(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// buildItems resolves and validates every requested line item, snapshots
// prices, and accumulates the order subtotal.
func (s *Service) buildItems(ctx context.Context, restaurantID int64, reqs []ItemRequest) ([]Item, decimal.Decimal, error) {
	items := make([]Item, 0, len(reqs))
	subtotal := decimal.Zero

	for _, req := range reqs {
		product, err := s.catalog.Product(ctx, req.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !product.Available {
			return nil, decimal.Zero, &ProductUnavailableError{Product: product.Name}
		}
		if product.RestaurantID != restaurantID {
			return nil, decimal.Zero, &ProductRestaurantMismatchError{ProductID: product.ID}
		}

		selected, err := ValidateSelections(ctx, s.catalog, product, req.Options)
		if err != nil {
			return nil, decimal.Zero, err
		}

		unitPrice := product.EffectivePrice()
		item := Item{
			ProductID: product.ID,
			Quantity:  req.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  ItemSubtotal(unitPrice, selected, req.Quantity),
			Notes:     req.Notes,
		}
		for _, sel := range selected {
			item.Options = append(item.Options, ItemOption{
				GroupID:   sel.GroupID,
				OptionID:  sel.OptionID,
				Surcharge: sel.Surcharge,
			})
		}

		items = append(items, item)
		subtotal = subtotal.Add(item.Subtotal)
	}

	return items, subtotal, nil
}

// applyCoupon resolves the coupon by canonical code and computes the
// discount snapshot. The usage counter is incremented later, inside the
// creation transaction, so a cap race rolls the whole order back.
func (s *Service) applyCoupon(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*Redemption, error) {
	c, err := s.coupons.FindByCode(ctx, coupon.NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	discount, err := coupon.Apply(c, subtotal, now)
	if err != nil {
		return nil, err
	}

	return &Redemption{
		CouponID: c.ID,
		Code:     c.Code,
		Discount: discount,
	}, nil
}

// persistWithNumber allocates an order number and persists the aggregate,
// retrying with a fresh candidate when the number races with a concurrent
// creation. Uniqueness is checked both before and at insert time; only the
// unique constraint at insert is authoritative.
func (s *Service) persistWithNumber(ctx context.Context, o *Order) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o.Number = s.newNumber()

		taken, err := s.orders.NumberExists(ctx, o.Number)
		if err != nil {
			return fmt.Errorf("check order number: %w", err)
		}
		if taken {
			continue
		}

		err = s.orders.Create(ctx, o)
		if errors.Is(err, ErrNumberTaken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	}
	return ErrNumberAttempts
}

func estimateDelivery(r *party.Restaurant, now time.Time) time.Time {
	prep := r.AvgPrepMinutes
	if prep <= 0 {
		prep = fallbackPrepMinutes
	}
	return now.Add(time.Duration(prep) * time.Minute)
}

// Get returns the full order aggregate by id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// GetByNumber returns the full order aggregate by its human-facing number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return s.orders.GetByNumber(ctx, number)
}

// History returns the order's status history, oldest first.
func (s *Service) History(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orders.History(ctx, orderID)
}

// UpdateStatus dispatches to the named transition for the target status.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, orderID int64, target Status, note string) (*Order, error) {
	switch target {
	case StatusConfirmed:
		return s.Confirm(ctx, actor, orderID, note)
	case StatusPreparing:
		return s.StartPreparing(ctx, actor, orderID, note)
	case StatusReady:
		return s.MarkReady(ctx, actor, orderID, note)
	case StatusDispatched:
		return s.Dispatch(ctx, actor, orderID, note)
	case StatusDelivered:
		return s.Deliver(ctx, actor, orderID, note)
	case StatusCancelled:
		return s.Cancel(ctx, actor, orderID, note)
	default:
		return nil, errors.Errorf("invalid target status: %q", target)
	}
}

// Confirm transitions the order to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, actor Actor, orderID int64, note string) (*Order, error) {
	return s.transition(ctx, actor, orderID, note, (*Order).Confirm)
}

// StartPreparing transitions the order to PREPARING.
func (s *Service) StartPreparing(ctx context.Context, actor Actor, orderID int64, note string) (*Order, error) {
	return s.transition(ctx, actor, orderID, note, (*Order).StartPreparing)
}

// MarkReady transitions the order to READY.
func (s *Service) MarkReady(ctx context.Context, actor Actor, orderID int64, note string) (*Order, error) {
	return s.transition(ctx, actor, orderID, note, (*Order).MarkReady)
}

// Dispatch transitions the order to DISPATCHED.
func (s *Service) Dispatch(ctx context.Context, actor Actor, orderID int64, note string) (*Order, error) {
	return s.transition(ctx, actor, orderID, note, (*Order).Dispatch)
}

// Deliver transitions the order to DELIVERED.
func (s *Service) Deliver(ctx context.Context, actor Actor, orderID int64, note string) (*Order, error) {
	return s.transition(ctx, actor, orderID, note, (*Order).Deliver)
}

// Cancel cancels the order with the given reason. Allowed only while the
// order is awaiting confirmation or confirmed.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID int64, reason string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := o.Cancel(reason, now); err != nil {
		return nil, err
	}

	entry := &HistoryEntry{
		Status:    o.Status,
		Note:      reason,
		Actor:     actor.String(),
		CreatedAt: now,
	}
	if err := s.orders.Update(ctx, o, entry); err != nil {
		return nil, fmt.Errorf("update order %d: %w", orderID, err)
	}
	o.History = append(o.History, *entry)
	return o, nil
}

// ApprovePayment marks the order's payment as approved.
func (s *Service) ApprovePayment(ctx context.Context, orderID int64) error {
	return s.setPayment(ctx, orderID, (*Order).ApprovePayment)
}

// RefusePayment marks the order's payment as refused.
func (s *Service) RefusePayment(ctx context.Context, orderID int64) error {
	return s.setPayment(ctx, orderID, (*Order).RefusePayment)
}

// ListByRestaurant returns a restaurant's orders, newest first, optionally
// filtered by status.
func (s *Service) ListByRestaurant(ctx context.Context, restaurantID int64, status *Status) ([]Order, error) {
	if _, err := s.parties.Restaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.orders.ListByRestaurant(ctx, restaurantID, status)
}

// ListByClient returns a client's orders, newest first, optionally
// filtered by status.
func (s *Service) ListByClient(ctx context.Context, clientID int64, status *Status) ([]Order, error) {
	if _, err := s.parties.Client(ctx, clientID); err != nil {
		return nil, err
	}
	return s.orders.ListByClient(ctx, clientID, status)
}

// ListActive returns a restaurant's orders still in flight, newest first.
func (s *Service) ListActive(ctx context.Context, restaurantID int64) ([]Order, error) {
	orders, err := s.ListByRestaurant(ctx, restaurantID, nil)
	if err != nil {
		return nil, err
	}
	active := orders[:0]
	for _, o := range orders {
		if !o.Status.Terminal() {
			active = append(active, o)
		}
	}
	return active, nil
}

// ListByPeriod returns a restaurant's orders created within [from, to].
func (s *Service) ListByPeriod(ctx context.Context, restaurantID int64, from, to time.Time) ([]Order, error) {
	if _, err := s.parties.Restaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.orders.ListByPeriod(ctx, restaurantID, from, to)
}

func (s *Service) transition(ctx context.Context, actor Actor, orderID int64, note string, move func(*Order, time.Time) error) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := move(o, now); err != nil {
		return nil, err
	}

	entry := &HistoryEntry{
		Status:    o.Status,
		Note:      note,
		Actor:     actor.String(),
		CreatedAt: now,
	}
	if err := s.orders.Update(ctx, o, entry); err != nil {
		return nil, fmt.Errorf("update order %d: %w", orderID, err)
	}
	o.History = append(o.History, *entry)
	return o, nil
}

func (s *Service) setPayment(ctx context.Context, orderID int64, set func(*Order)) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	set(o)
	if err := s.orders.Update(ctx, o, nil); err != nil {
		return fmt.Errorf("update order %d: %w", orderID, err)
	}
	return nil
}
