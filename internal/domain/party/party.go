// Package party defines the parties around an order: clients and their
// delivery addresses, restaurants, and payment types. The order core only
// reads them.
package party

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for party lookups.
var (
	ErrClientNotFound      = errors.New("client not found")
	ErrRestaurantNotFound  = errors.New("restaurant not found")
	ErrAddressNotFound     = errors.New("address not found")
	ErrPaymentTypeNotFound = errors.New("payment type not found")
)

// Client is a registered customer.
type Client struct {
	ID       int64
	FullName string
	Phone    string
	Active   bool
}

// Restaurant carries the per-restaurant order policy: whether it accepts
// orders at all, its delivery fee, and its minimum order value.
type Restaurant struct {
	ID             int64
	Name           string
	Active         bool
	Open           bool
	MinOrderValue  decimal.Decimal
	DeliveryFee    decimal.Decimal
	AvgPrepMinutes int
}

// Address is a client delivery address. OwnerClientID ties it to the
// client it belongs to.
type Address struct {
	ID            int64
	OwnerClientID int64
	Street        string
	Number        string
	District      string
	City          string
}

// PaymentType is a payment method accepted at checkout. RequiresChange is
// set for cash-like methods where a change-due amount is meaningful.
type PaymentType struct {
	ID             int64
	Name           string
	RequiresChange bool
	Active         bool
}

// Lookup resolves party entities by id. Implementations return the package
// sentinel errors on misses.
type Lookup interface {
	Client(ctx context.Context, id int64) (*Client, error)
	Restaurant(ctx context.Context, id int64) (*Restaurant, error)
	Address(ctx context.Context, id int64) (*Address, error)
	PaymentType(ctx context.Context, id int64) (*PaymentType, error)
}
