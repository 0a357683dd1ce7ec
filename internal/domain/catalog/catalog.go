// Package catalog defines the read-only product catalog consumed by the
// order core: products, their option groups, and the options within them.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrGroupNotFound   = errors.New("option group not found")
	ErrOptionNotFound  = errors.New("option not found")
)

// Product is a catalog item offered by a restaurant.
type Product struct {
	ID           int64
	RestaurantID int64
	Name         string
	ListPrice    decimal.Decimal
	PromoPrice   *decimal.Decimal
	Available    bool
}

// EffectivePrice returns the price charged for the product right now:
// the promotional price when it undercuts the list price, the list price
// otherwise.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.PromoPrice != nil && p.PromoPrice.LessThan(p.ListPrice) {
		return *p.PromoPrice
	}
	return p.ListPrice
}

// OptionGroup is a named set of related choices on a product (e.g. "Size")
// with cardinality rules for how many options may be picked.
type OptionGroup struct {
	ID            int64
	ProductID     int64
	Name          string
	Mandatory     bool
	MinSelections int
	MaxSelections int
}

// SelectionCountValid reports whether picking n options from the group
// satisfies its configured bounds.
func (g OptionGroup) SelectionCountValid(n int) bool {
	return n >= g.MinSelections && n <= g.MaxSelections
}

// Option is a single choice inside an option group, with an optional
// price surcharge.
type Option struct {
	ID        int64
	GroupID   int64
	Name      string
	Surcharge decimal.Decimal
	Available bool
}

// Lookup resolves catalog entities by id. Implementations return the
// package sentinel errors on misses.
type Lookup interface {
	Product(ctx context.Context, id int64) (*Product, error)
	OptionGroup(ctx context.Context, id int64) (*OptionGroup, error)
	Option(ctx context.Context, id int64) (*Option, error)
	// GroupsByProduct returns every option group configured on the product,
	// in display order.
	GroupsByProduct(ctx context.Context, productID int64) ([]OptionGroup, error)
}
