// Command coupon-ingest bulk-loads campaign coupon codes from gzip code
// dumps into the coupons table. Marketing exports arrive as one code per
// line, often with heavy duplication across files; a bloom filter screens
// repeats cheaply before the database's unique index has the final word.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/devmaster/delivery-backoffice/internal/domain/coupon"
	"github.com/devmaster/delivery-backoffice/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 6
	maxCodeLen    = 12
)

const upsertCouponSQL = `INSERT INTO coupons
	(code, description, discount_kind, discount_value, min_order_value,
	 max_discount, usage_limit, valid_from, valid_until, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	ON CONFLICT ((UPPER(code))) DO NOTHING`

func main() {
	var (
		dataDir     string
		databaseURL string
		kind        string
		value       string
		maxDiscount string
		usageLimit  int
		validDays   int
		description string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz code dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&kind, "kind", string(coupon.KindPercentage), "discount kind: PERCENTAGE or FIXED")
	flag.StringVar(&value, "value", "10", "discount value (percent or amount)")
	flag.StringVar(&maxDiscount, "max-discount", "", "discount cap for percentage coupons (empty = uncapped)")
	flag.IntVar(&usageLimit, "usage-limit", 0, "redemptions allowed per code (0 = unlimited)")
	flag.IntVar(&validDays, "valid-days", 30, "validity window length in days, starting now")
	flag.StringVar(&description, "description", "Campaign coupon", "coupon description")
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

	tmpl, err := buildTemplate(kind, value, maxDiscount, usageLimit, validDays, description)
	if err != nil {
		slog.Error("invalid coupon parameters", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(ctx, dataDir, databaseURL, tmpl); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

// template holds the shared coupon attributes applied to every ingested code.
type template struct {
	kind        coupon.Kind
	value       decimal.Decimal
	maxDiscount *decimal.Decimal
	usageLimit  *int
	validFrom   time.Time
	validUntil  time.Time
	description string
}

func buildTemplate(kind, value, maxDiscount string, usageLimit, validDays int, description string) (*template, error) {
	k := coupon.Kind(strings.ToUpper(kind))
	if k != coupon.KindPercentage && k != coupon.KindFixed {
		return nil, errors.Errorf("unknown discount kind %q", kind)
	}

	v, err := decimal.NewFromString(value)
	if err != nil {
		return nil, errors.Wrap(err, "parse value")
	}

	tmpl := &template{
		kind:        k,
		value:       v,
		validFrom:   time.Now(),
		validUntil:  time.Now().AddDate(0, 0, validDays),
		description: description,
	}
	if maxDiscount != "" {
		md, err := decimal.NewFromString(maxDiscount)
		if err != nil {
			return nil, errors.Wrap(err, "parse max discount")
		}
		tmpl.maxDiscount = &md
	}
	if usageLimit > 0 {
		tmpl.usageLimit = &usageLimit
	}
	return tmpl, nil
}

func run(ctx context.Context, dataDir, databaseURL string, tmpl *template) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files in %s", dataDir)
	}

	slog.Info("collecting codes", slog.Int("files", len(files)))

	codes, err := collectCodes(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}

	slog.Info("unique codes collected", slog.Int("count", len(codes)))

	if len(codes) == 0 {
		slog.Info("nothing to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeCoupons(ctx, pool, codes, tmpl)
}

// collectCodes streams all files concurrently and returns the deduplicated
// code set. The bloom filter rejects repeats without holding every seen
// code in memory; its rare false positives only drop a duplicate-looking
// code, never corrupt one.
func collectCodes(ctx context.Context, files []string) ([]string, error) {
	var (
		mu     sync.Mutex
		filter = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		codes  []string
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			var count uint64
			err := streamGzFile(ctx, path, func(code string) {
				code = coupon.NormalizeCode(code)
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}

				count++
				if count%progressEvery == 0 {
					slog.Info("progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}

				mu.Lock()
				if !filter.TestString(code) {
					filter.AddString(code)
					codes = append(codes, code)
				}
				mu.Unlock()
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d", i+1)
			}

			slog.Info("file complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return codes, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string, tmpl *template) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	for i, code := range codes {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			code, tmpl.description, string(tmpl.kind), tmpl.value, decimal.Zero,
			tmpl.maxDiscount, tmpl.usageLimit, tmpl.validFrom, tmpl.validUntil,
		)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", code)
		}

		if (i+1)%1000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
