package app

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/transfer-orders/internal/handler"
	"github.com/xenking/transfer-orders/internal/idempotency"
	"github.com/xenking/transfer-orders/pkg/health"
	"github.com/xenking/transfer-orders/pkg/httpmiddleware"
)

// RouterDeps collects everything the HTTP router serves.
type RouterDeps struct {
	Logger  *zap.Logger
	Orders  handler.OrderService
	Health  *health.Health
	Replays idempotency.Store // nil disables Idempotency-Key replay

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// NewRouter builds the API handler: middleware chain, probes and the order
// routes. Background rate limiter cleanup stops with ctx.
func NewRouter(ctx context.Context, cfg *Config, deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(deps.Logger),
		httpmiddleware.RequestID(),
		httpmiddleware.LogRequests(),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "X-Request-ID", idempotency.Header},
			ExposeHeaders:    []string{"X-Request-ID", idempotency.ReplayedHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	)

	r.Get("/health", deps.Health.ServiceEndpoint)
	r.Get("/livez", deps.Health.LiveEndpoint)
	r.Get("/readyz", deps.Health.ReadyEndpoint)

	var opts []handler.Option
	if deps.Replays != nil {
		opts = append(opts, handler.WithCreateMiddleware(
			idempotency.Middleware(deps.Replays, cfg.Idempotency.TTL),
		))
	}
	handler.NewHandler(deps.Orders, opts...).Mount(r)

	var otelOpts []otelhttp.Option
	if deps.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(deps.MeterProvider))
	}
	if deps.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(deps.TracerProvider))
	}
	return httpmiddleware.Wrap(r, otelhttp.NewMiddleware("orders-api", otelOpts...))
}
