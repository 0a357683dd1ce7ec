// Command seed-db migrates the database and loads reference data from a
// JSON seed file: restaurants with their catalogs, clients with addresses,
// payment types, and coupons.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/devmaster/delivery-backoffice/internal/repository"
)

type seedFile struct {
	Restaurants  []restaurantJSON  `json:"restaurants"`
	Clients      []clientJSON      `json:"clients"`
	PaymentTypes []paymentTypeJSON `json:"payment_types"`
	Coupons      []couponJSON      `json:"coupons"`
}

type restaurantJSON struct {
	Name           string          `json:"name"`
	Active         bool            `json:"active"`
	Open           bool            `json:"open"`
	MinOrderValue  decimal.Decimal `json:"min_order_value"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	AvgPrepMinutes int             `json:"avg_prep_minutes"`
	Products       []productJSON   `json:"products"`
}

type productJSON struct {
	Name       string           `json:"name"`
	ListPrice  decimal.Decimal  `json:"list_price"`
	PromoPrice *decimal.Decimal `json:"promo_price"`
	Available  bool             `json:"available"`
	Groups     []groupJSON      `json:"groups"`
}

type groupJSON struct {
	Name          string       `json:"name"`
	Mandatory     bool         `json:"mandatory"`
	MinSelections int          `json:"min_selections"`
	MaxSelections int          `json:"max_selections"`
	Options       []optionJSON `json:"options"`
}

type optionJSON struct {
	Name      string          `json:"name"`
	Surcharge decimal.Decimal `json:"surcharge"`
	Available bool            `json:"available"`
}

type clientJSON struct {
	FullName  string        `json:"full_name"`
	Phone     string        `json:"phone"`
	Addresses []addressJSON `json:"addresses"`
}

type addressJSON struct {
	Street   string `json:"street"`
	Number   string `json:"number"`
	District string `json:"district"`
	City     string `json:"city"`
}

type paymentTypeJSON struct {
	Name           string `json:"name"`
	RequiresChange bool   `json:"requires_change"`
}

type couponJSON struct {
	Code          string           `json:"code"`
	Description   string           `json:"description"`
	Kind          string           `json:"kind"`
	Value         decimal.Decimal  `json:"value"`
	MinOrderValue decimal.Decimal  `json:"min_order_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount"`
	UsageLimit    *int             `json:"usage_limit"`
	ValidDays     int              `json:"valid_days"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/demo.json", "path to seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedRestaurants(ctx, pool, seed.Restaurants); err != nil {
		return errors.Wrap(err, "seed restaurants")
	}
	if err := seedClients(ctx, pool, seed.Clients); err != nil {
		return errors.Wrap(err, "seed clients")
	}
	if err := seedPaymentTypes(ctx, pool, seed.PaymentTypes); err != nil {
		return errors.Wrap(err, "seed payment types")
	}
	if err := seedCoupons(ctx, pool, seed.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedRestaurants(ctx context.Context, pool *pgxpool.Pool, restaurants []restaurantJSON) error {
	slog.Info("seeding restaurants", slog.Int("count", len(restaurants)))

	for _, r := range restaurants {
		var restaurantID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO restaurants (name, active, open, min_order_value, delivery_fee, avg_prep_minutes)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			r.Name, r.Active, r.Open, r.MinOrderValue, r.DeliveryFee, r.AvgPrepMinutes,
		).Scan(&restaurantID)
		if err != nil {
			return errors.Wrapf(err, "insert restaurant %s", r.Name)
		}

		for _, p := range r.Products {
			var productID int64
			err := pool.QueryRow(ctx,
				`INSERT INTO products (restaurant_id, name, list_price, promo_price, available)
				 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				restaurantID, p.Name, p.ListPrice, p.PromoPrice, p.Available,
			).Scan(&productID)
			if err != nil {
				return errors.Wrapf(err, "insert product %s", p.Name)
			}

			for gi, g := range p.Groups {
				var groupID int64
				err := pool.QueryRow(ctx,
					`INSERT INTO option_groups (product_id, name, mandatory, min_selections, max_selections, display_order)
					 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
					productID, g.Name, g.Mandatory, g.MinSelections, g.MaxSelections, gi,
				).Scan(&groupID)
				if err != nil {
					return errors.Wrapf(err, "insert option group %s", g.Name)
				}

				for oi, o := range g.Options {
					_, err := pool.Exec(ctx,
						`INSERT INTO options (group_id, name, surcharge, available, display_order)
						 VALUES ($1, $2, $3, $4, $5)`,
						groupID, o.Name, o.Surcharge, o.Available, oi,
					)
					if err != nil {
						return errors.Wrapf(err, "insert option %s", o.Name)
					}
				}
			}
		}

		slog.Info("seeded restaurant", slog.String("name", r.Name), slog.Int("products", len(r.Products)))
	}

	return nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, clients []clientJSON) error {
	slog.Info("seeding clients", slog.Int("count", len(clients)))

	for _, c := range clients {
		var clientID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO clients (full_name, phone) VALUES ($1, $2) RETURNING id`,
			c.FullName, c.Phone,
		).Scan(&clientID)
		if err != nil {
			return errors.Wrapf(err, "insert client %s", c.FullName)
		}

		for _, a := range c.Addresses {
			_, err := pool.Exec(ctx,
				`INSERT INTO client_addresses (client_id, street, number, district, city)
				 VALUES ($1, $2, $3, $4, $5)`,
				clientID, a.Street, a.Number, a.District, a.City,
			)
			if err != nil {
				return errors.Wrapf(err, "insert address for client %s", c.FullName)
			}
		}
	}

	return nil
}

func seedPaymentTypes(ctx context.Context, pool *pgxpool.Pool, types []paymentTypeJSON) error {
	slog.Info("seeding payment types", slog.Int("count", len(types)))

	for _, p := range types {
		_, err := pool.Exec(ctx,
			`INSERT INTO payment_types (name, requires_change) VALUES ($1, $2)`,
			p.Name, p.RequiresChange,
		)
		if err != nil {
			return errors.Wrapf(err, "insert payment type %s", p.Name)
		}
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("seeding coupons", slog.Int("count", len(coupons)))

	now := time.Now()
	for _, c := range coupons {
		validDays := c.ValidDays
		if validDays <= 0 {
			validDays = 30
		}
		_, err := pool.Exec(ctx,
			`INSERT INTO coupons (code, description, discount_kind, discount_value, min_order_value,
			   max_discount, usage_limit, valid_from, valid_until)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT ((UPPER(code))) DO NOTHING`,
			c.Code, c.Description, c.Kind, c.Value, c.MinOrderValue,
			c.MaxDiscount, c.UsageLimit, now, now.AddDate(0, 0, validDays),
		)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", c.Code)
		}

		slog.Info("seeded coupon", slog.String("code", c.Code))
	}

	return nil
}
