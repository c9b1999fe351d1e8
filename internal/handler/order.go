package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/transfer-orders/internal/domain/order"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
)

// CreateOrder handles POST /api/v1/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeCreateRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Order created successfully", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// ListOrders handles GET /api/v1/orders?page&limit.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.List(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, res)
}

// ListOrdersByStatus handles GET /api/v1/orders/status/{status}?page&limit.
func (h *Handler) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := order.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.ListByStatus(r.Context(), status, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, res)
}

// GetOrder handles GET /api/v1/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// GetOrderByCode handles GET /api/v1/orders/code/{code}.
func (h *Handler) GetOrderByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := uniquecode.ValidateFormat(code); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidCode)
		return
	}

	o, err := h.orders.GetByUniqueCode(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/{id}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := decodeStatus(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Order status updated successfully", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// GenerateTestOrders handles POST /api/v1/orders/generate-test?count.
func (h *Handler) GenerateTestOrders(w http.ResponseWriter, r *http.Request) {
	count := queryInt(r, "count", order.DefaultTestOrderCount)
	if err := order.ValidateTestOrderCount(count); err != nil {
		writeError(w, r, err)
		return
	}

	res := h.orders.GenerateTestOrders(r.Context(), count)
	msg := "Successfully created " + strconv.Itoa(res.Created) + " test orders"
	writeData(w, http.StatusOK, msg, func(e *jx.Encoder) {
		encodeGenerateResult(e, res)
	})
}

// GetStatistics handles GET /api/v1/orders/statistics.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", func(e *jx.Encoder) {
		encodeStatistics(e, stats)
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeFailure(w, http.StatusBadRequest, msgInvalidOrderID)
		return 0, false
	}
	return id, true
}

// parsePage reads page and limit, falling back to the defaults for missing
// or non-numeric values.
func parsePage(r *http.Request) (order.Page, error) {
	p := order.Page{
		Page:  queryInt(r, "page", order.DefaultPage),
		Limit: queryInt(r, "limit", order.DefaultLimit),
	}
	return p, p.Validate()
}

// queryInt returns the integer query parameter name, or def when it is
// absent, malformed or zero.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v == 0 {
		return def
	}
	return v
}
