// Command seed-db applies the schema and fills the orders table with test
// orders for random products from the test catalog.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/transfer-orders/internal/domain/order"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
	"github.com/xenking/transfer-orders/internal/repository"
)

func main() {
	var (
		databaseURL string
		count       int
		maxAttempts int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&count, "count", order.DefaultTestOrderCount, "number of test orders to create (1-1000)")
	flag.IntVar(&maxAttempts, "max-attempts", uniquecode.DefaultMaxAttempts, "random probes per unique code")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if err := order.ValidateTestOrderCount(count); err != nil {
		lg.Fatal("Invalid count", zap.Int("count", count), zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	res, err := run(ctx, databaseURL, count, maxAttempts)
	if err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed",
		zap.Int("requested", res.Requested),
		zap.Int("created", res.Created),
		zap.Int("failed", res.Failed),
	)
}

func run(ctx context.Context, databaseURL string, count, maxAttempts int) (order.GenerateResult, error) {
	lg := zctx.From(ctx)
	lg.Info("Connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL, repository.PoolConfig{})
	if err != nil {
		return order.GenerateResult{}, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return order.GenerateResult{}, errors.Wrap(err, "run migrations")
	}

	repo := repository.NewOrderRepository(pool)
	allocator, err := uniquecode.NewAllocator(repo, uniquecode.Config{MaxAttempts: maxAttempts})
	if err != nil {
		return order.GenerateResult{}, errors.Wrap(err, "create code allocator")
	}

	available, err := allocator.AvailableCodes(ctx)
	if err != nil {
		return order.GenerateResult{}, errors.Wrap(err, "read available codes")
	}
	lg.Info("Generating test orders",
		zap.Int("count", count),
		zap.Strings("available_codes", available),
	)
	if len(available) < count {
		lg.Warn("Fewer free codes than requested orders, some will fail",
			zap.Int("free", len(available)),
		)
	}

	return order.NewService(repo, allocator).GenerateTestOrders(ctx, count), nil
}
