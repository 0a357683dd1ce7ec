package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devmaster/delivery-backoffice/internal/domain/party"
)

const (
	getClientSQL = `SELECT id, full_name, phone, active FROM clients WHERE id = $1`

	getRestaurantSQL = `SELECT id, name, active, open, min_order_value, delivery_fee,
		COALESCE(avg_prep_minutes, 0)
		FROM restaurants WHERE id = $1`

	getAddressSQL = `SELECT id, client_id, street, number, district, city
		FROM client_addresses WHERE id = $1`

	getPaymentTypeSQL = `SELECT id, name, requires_change, active
		FROM payment_types WHERE id = $1`
)

var _ party.Lookup = (*PartyRepository)(nil)

// PartyRepository implements party.Lookup backed by PostgreSQL.
type PartyRepository struct {
	pool *pgxpool.Pool
}

// NewPartyRepository returns a PartyRepository that uses the given pool.
func NewPartyRepository(pool *pgxpool.Pool) *PartyRepository {
	return &PartyRepository{pool: pool}
}

// Client returns a single client by its identifier.
func (r *PartyRepository) Client(ctx context.Context, id int64) (*party.Client, error) {
	rows, err := r.pool.Query(ctx, getClientSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting client %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (party.Client, error) {
		var c party.Client
		err := row.Scan(&c.ID, &c.FullName, &c.Phone, &c.Active)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, party.ErrClientNotFound
		}
		return nil, fmt.Errorf("getting client %d: %w", id, err)
	}
	return &c, nil
}

// Restaurant returns a single restaurant by its identifier.
func (r *PartyRepository) Restaurant(ctx context.Context, id int64) (*party.Restaurant, error) {
	rows, err := r.pool.Query(ctx, getRestaurantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting restaurant %d: %w", id, err)
	}

	rest, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (party.Restaurant, error) {
		var rest party.Restaurant
		err := row.Scan(
			&rest.ID, &rest.Name, &rest.Active, &rest.Open,
			&rest.MinOrderValue, &rest.DeliveryFee, &rest.AvgPrepMinutes,
		)
		return rest, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, party.ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("getting restaurant %d: %w", id, err)
	}
	return &rest, nil
}

// Address returns a single delivery address by its identifier.
func (r *PartyRepository) Address(ctx context.Context, id int64) (*party.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting address %d: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (party.Address, error) {
		var a party.Address
		err := row.Scan(&a.ID, &a.OwnerClientID, &a.Street, &a.Number, &a.District, &a.City)
		return a, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, party.ErrAddressNotFound
		}
		return nil, fmt.Errorf("getting address %d: %w", id, err)
	}
	return &a, nil
}

// PaymentType returns a single payment type by its identifier.
func (r *PartyRepository) PaymentType(ctx context.Context, id int64) (*party.PaymentType, error) {
	rows, err := r.pool.Query(ctx, getPaymentTypeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting payment type %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (party.PaymentType, error) {
		var p party.PaymentType
		err := row.Scan(&p.ID, &p.Name, &p.RequiresChange, &p.Active)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, party.ErrPaymentTypeNotFound
		}
		return nil, fmt.Errorf("getting payment type %d: %w", id, err)
	}
	return &p, nil
}
