package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devmaster/delivery-backoffice/internal/domain/catalog"
)

const (
	getProductSQL = `SELECT id, restaurant_id, name, list_price, promo_price, available
		FROM products WHERE id = $1`

	getOptionGroupSQL = `SELECT id, product_id, name, mandatory, min_selections, max_selections
		FROM option_groups WHERE id = $1`

	getOptionSQL = `SELECT id, group_id, name, surcharge, available
		FROM options WHERE id = $1`

	getGroupsByProductSQL = `SELECT id, product_id, name, mandatory, min_selections, max_selections
		FROM option_groups WHERE product_id = $1 ORDER BY display_order, id`
)

var _ catalog.Lookup = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Lookup backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Product returns a single product by its identifier.
func (r *CatalogRepository) Product(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// OptionGroup returns a single option group by its identifier.
func (r *CatalogRepository) OptionGroup(ctx context.Context, id int64) (*catalog.OptionGroup, error) {
	rows, err := r.pool.Query(ctx, getOptionGroupSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting option group %d: %w", id, err)
	}

	g, err := pgx.CollectExactlyOneRow(rows, scanOptionGroup)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrGroupNotFound
		}
		return nil, fmt.Errorf("getting option group %d: %w", id, err)
	}
	return &g, nil
}

// Option returns a single option by its identifier.
func (r *CatalogRepository) Option(ctx context.Context, id int64) (*catalog.Option, error) {
	rows, err := r.pool.Query(ctx, getOptionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting option %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOption)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrOptionNotFound
		}
		return nil, fmt.Errorf("getting option %d: %w", id, err)
	}
	return &o, nil
}

// GroupsByProduct returns a product's option groups in display order.
func (r *CatalogRepository) GroupsByProduct(ctx context.Context, productID int64) ([]catalog.OptionGroup, error) {
	rows, err := r.pool.Query(ctx, getGroupsByProductSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing option groups for product %d: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanOptionGroup)
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.RestaurantID, &p.Name, &p.ListPrice, &p.PromoPrice, &p.Available,
	)
	return p, err
}

func scanOptionGroup(row pgx.CollectableRow) (catalog.OptionGroup, error) {
	var g catalog.OptionGroup
	err := row.Scan(
		&g.ID, &g.ProductID, &g.Name, &g.Mandatory, &g.MinSelections, &g.MaxSelections,
	)
	return g, err
}

func scanOption(row pgx.CollectableRow) (catalog.Option, error) {
	var o catalog.Option
	err := row.Scan(
		&o.ID, &o.GroupID, &o.Name, &o.Surcharge, &o.Available,
	)
	return o, err
}
