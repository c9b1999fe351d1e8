// Package handler exposes the order service over HTTP under /api/v1.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/transfer-orders/internal/domain/order"
)

// OrderService is the subset of *order.Service used by the HTTP layer.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	GetByUniqueCode(ctx context.Context, code string) (*order.Order, error)
	List(ctx context.Context, page order.Page) (*order.ListResult, error)
	ListByStatus(ctx context.Context, status order.Status, page order.Page) (*order.ListResult, error)
	UpdateStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error)
	GenerateTestOrders(ctx context.Context, count int) order.GenerateResult
	Statistics(ctx context.Context) (*order.Statistics, error)
}

var _ OrderService = (*order.Service)(nil)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the order API, delegating business logic to the order
// service.
type Handler struct {
	orders OrderService

	// createMiddleware wraps POST /orders only, e.g. idempotent replay.
	createMiddleware []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithCreateMiddleware wraps the create endpoint with mw.
func WithCreateMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.createMiddleware = append(h.createMiddleware, mw...)
	}
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders OrderService, opts ...Option) *Handler {
	h := &Handler{orders: orders}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Mount registers the order routes under /api/v1 and the JSON 404/405
// fallbacks on r.
func (h *Handler) Mount(r chi.Router) {
	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.With(h.createMiddleware...).Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/statistics", h.GetStatistics)
		r.Get("/status/{status}", h.ListOrdersByStatus)
		r.Get("/code/{code}", h.GetOrderByCode)
		r.Post("/generate-test", h.GenerateTestOrders)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}/status", h.UpdateOrderStatus)
	})
}

// NotFound answers every unknown route.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeFailure(w, http.StatusNotFound, "Route not found")
}
