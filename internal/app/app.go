// Package app wires configuration, storage and transport into the API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/transfer-orders/internal/domain/order"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
	"github.com/xenking/transfer-orders/internal/idempotency"
	"github.com/xenking/transfer-orders/internal/repository"
	"github.com/xenking/transfer-orders/pkg/health"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("environment", cfg.Environment),
	)

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Optional Redis for idempotent order creation.
	var (
		rdb     *redis.Client
		replays idempotency.Store
	)
	if cfg.RedisURL != "" {
		rdb, err = idempotency.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
		replays = idempotency.NewRedisStore(rdb)
		lg.Info("Idempotency-Key replay enabled", zap.Duration("ttl", cfg.Idempotency.TTL))
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.SetEnvironment(cfg.Environment)
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repository and domain services.
	orderRepo := repository.NewOrderRepository(pool)
	allocator, err := uniquecode.NewAllocator(orderRepo, uniquecode.Config{
		MaxAttempts:   cfg.Codes.MaxAttempts,
		MeterProvider: m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create code allocator")
	}
	orderService := order.NewService(orderRepo, allocator)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: NewRouter(ctx, cfg, RouterDeps{
			Logger:         lg,
			Orders:         orderService,
			Health:         healthSvc,
			Replays:        replays,
			MeterProvider:  m.MeterProvider(),
			TracerProvider: m.TracerProvider(),
		}),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
