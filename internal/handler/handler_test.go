package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/transfer-orders/internal/domain/order"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
)

// --- Mock implementations ---

type mockOrderService struct {
	order     *order.Order
	list      *order.ListResult
	stats     *order.Statistics
	generated order.GenerateResult
	err       error

	lastCreate order.CreateRequest
	lastPage   order.Page
	lastStatus order.Status
	lastID     int64
	lastCode   string
	lastCount  int
	calls      int
}

func (m *mockOrderService) Create(_ context.Context, req order.CreateRequest) (*order.Order, error) {
	m.calls++
	m.lastCreate = req
	return m.order, m.err
}

func (m *mockOrderService) Get(_ context.Context, id int64) (*order.Order, error) {
	m.calls++
	m.lastID = id
	return m.order, m.err
}

func (m *mockOrderService) GetByUniqueCode(_ context.Context, code string) (*order.Order, error) {
	m.calls++
	m.lastCode = code
	return m.order, m.err
}

func (m *mockOrderService) List(_ context.Context, page order.Page) (*order.ListResult, error) {
	m.calls++
	m.lastPage = page
	return m.list, m.err
}

func (m *mockOrderService) ListByStatus(_ context.Context, status order.Status, page order.Page) (*order.ListResult, error) {
	m.calls++
	m.lastStatus = status
	m.lastPage = page
	return m.list, m.err
}

func (m *mockOrderService) UpdateStatus(_ context.Context, id int64, status order.Status) (*order.Order, error) {
	m.calls++
	m.lastID = id
	m.lastStatus = status
	return m.order, m.err
}

func (m *mockOrderService) GenerateTestOrders(_ context.Context, count int) order.GenerateResult {
	m.calls++
	m.lastCount = count
	return m.generated
}

func (m *mockOrderService) Statistics(_ context.Context) (*order.Statistics, error) {
	m.calls++
	return m.stats, m.err
}

// --- Helpers ---

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
}

type orderJSON struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	UniqueCode  string  `json:"unique_code"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func testOrder() *order.Order {
	ts := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:          7,
		ProductID:   1,
		ProductName: "Produk A",
		Price:       order.FixedPrice,
		UniqueCode:  "04",
		Status:      order.StatusPending,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func newTestRouter(svc OrderService, opts ...Option) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, opts...).Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// --- Tests ---

func TestCreateOrder(t *testing.T) {
	svc := &mockOrderService{order: testOrder()}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodPost, "/api/v1/orders", `{"product_id":1,"product_name":"Produk A"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Order created successfully", env.Message)
	assert.Equal(t, order.CreateRequest{ProductID: 1, ProductName: "Produk A"}, svc.lastCreate)

	var o orderJSON
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, int64(7), o.ID)
	assert.Equal(t, "04", o.UniqueCode)
	assert.Equal(t, "pending", o.Status)
	assert.Equal(t, float64(299000), o.Price)
	assert.Equal(t, "2025-06-15T12:00:00Z", o.CreatedAt)
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing name", `{"product_id":1}`, "product_id and product_name are required"},
		{"missing id", `{"product_name":"Produk A"}`, "product_id and product_name are required"},
		{"blank name", `{"product_id":1,"product_name":"   "}`, "product_id and product_name are required"},
		{"zero id", `{"product_id":0,"product_name":"Produk A"}`, "product_id and product_name are required"},
		{"negative id", `{"product_id":-3,"product_name":"Produk A"}`, "product_id must be a positive number"},
		{"string id", `{"product_id":"1","product_name":"Produk A"}`, "product_id must be a positive number"},
		{"fractional id", `{"product_id":1.5,"product_name":"Produk A"}`, "product_id must be a positive number"},
		{"malformed", `{"product_id":`, "Invalid JSON body"},
		{"not an object", `[1,2]`, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{}
			h := newTestRouter(svc)

			w, env := do(t, h, http.MethodPost, "/api/v1/orders", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantErr, env.Error)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestCreateOrder_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantErr    string
	}{
		{"exhausted", errors.Wrap(uniquecode.ErrAllocationExhausted, "allocate unique code"), http.StatusConflict, msgCodesUnavailable},
		{"conflict", uniquecode.ErrConflict, http.StatusConflict, msgCodesUnavailable},
		{"store down", errors.New("connection refused"), http.StatusInternalServerError, msgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockOrderService{err: tt.err})

			w, env := do(t, h, http.MethodPost, "/api/v1/orders", `{"product_id":2,"product_name":"Produk B"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantErr, env.Error)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestCreateOrder_Middleware(t *testing.T) {
	var wrapped bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = true
			next.ServeHTTP(w, r)
		})
	}
	h := newTestRouter(&mockOrderService{order: testOrder(), list: &order.ListResult{}}, WithCreateMiddleware(mw))

	do(t, h, http.MethodGet, "/api/v1/orders", "")
	assert.False(t, wrapped, "only the create route is wrapped")

	do(t, h, http.MethodPost, "/api/v1/orders", `{"product_id":1,"product_name":"Produk A"}`)
	assert.True(t, wrapped)
}

func TestGetOrder(t *testing.T) {
	svc := &mockOrderService{order: testOrder()}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodGet, "/api/v1/orders/7", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, int64(7), svc.lastID)
}

func TestGetOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantErr    string
	}{
		{"not numeric", "/api/v1/orders/abc", nil, http.StatusBadRequest, msgInvalidOrderID},
		{"zero", "/api/v1/orders/0", nil, http.StatusBadRequest, msgInvalidOrderID},
		{"not found", "/api/v1/orders/99", order.ErrNotFound, http.StatusNotFound, msgOrderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockOrderService{err: tt.err})

			w, env := do(t, h, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantErr, env.Error)
		})
	}
}

func TestListOrders(t *testing.T) {
	svc := &mockOrderService{list: &order.ListResult{
		Orders: []order.Order{*testOrder(), *testOrder()},
		Total:  12,
		Page:   2,
		Limit:  2,
	}}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodGet, "/api/v1/orders?page=2&limit=2", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.Page{Page: 2, Limit: 2}, svc.lastPage)
	assert.Equal(t, 12, env.Total)
	assert.Equal(t, 2, env.Page)
	assert.Equal(t, 2, env.Limit)

	var orders []orderJSON
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Len(t, orders, 2)
}

func TestListOrders_Defaults(t *testing.T) {
	svc := &mockOrderService{list: &order.ListResult{Orders: []order.Order{}, Page: 1, Limit: 10}}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodGet, "/api/v1/orders?page=x", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.Page{Page: 1, Limit: 10}, svc.lastPage)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestListOrders_InvalidPagination(t *testing.T) {
	for _, q := range []string{"limit=101", "limit=-1", "page=-2"} {
		t.Run(q, func(t *testing.T) {
			svc := &mockOrderService{}
			h := newTestRouter(svc)

			w, env := do(t, h, http.MethodGet, "/api/v1/orders?"+q, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid pagination parameters", env.Error)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestListOrdersByStatus(t *testing.T) {
	svc := &mockOrderService{list: &order.ListResult{Orders: []order.Order{*testOrder()}, Total: 1, Page: 1, Limit: 10}}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodGet, "/api/v1/orders/status/paid", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.StatusPaid, svc.lastStatus)
	assert.Equal(t, 1, env.Total)
}

func TestListOrdersByStatus_InvalidStatus(t *testing.T) {
	svc := &mockOrderService{}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodGet, "/api/v1/orders/status/shipped", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status. Must be one of: pending, paid, cancelled, completed", env.Error)
	assert.Zero(t, svc.calls)
}

func TestGetOrderByCode(t *testing.T) {
	svc := &mockOrderService{order: testOrder()}
	h := newTestRouter(svc)

	w, _ := do(t, h, http.MethodGet, "/api/v1/orders/code/04", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "04", svc.lastCode)

	w, env := do(t, h, http.MethodGet, "/api/v1/orders/code/123", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgInvalidCode, env.Error)
}

func TestUpdateOrderStatus(t *testing.T) {
	paid := testOrder()
	paid.Status = order.StatusPaid
	svc := &mockOrderService{order: paid}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodPatch, "/api/v1/orders/7/status", `{"status":"paid"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order status updated successfully", env.Message)
	assert.Equal(t, int64(7), svc.lastID)
	assert.Equal(t, order.StatusPaid, svc.lastStatus)
}

func TestUpdateOrderStatus_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
	}{
		{"bad id", "/api/v1/orders/x/status", `{"status":"paid"}`, nil, http.StatusBadRequest},
		{"bad status", "/api/v1/orders/7/status", `{"status":"shipped"}`, nil, http.StatusBadRequest},
		{"missing status", "/api/v1/orders/7/status", `{}`, nil, http.StatusBadRequest},
		{"not found", "/api/v1/orders/7/status", `{"status":"paid"}`, order.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockOrderService{err: tt.err})

			w, env := do(t, h, http.MethodPatch, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestGenerateTestOrders(t *testing.T) {
	svc := &mockOrderService{generated: order.GenerateResult{Requested: 50, Created: 9, Failed: 41}}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodPost, "/api/v1/orders/generate-test", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.DefaultTestOrderCount, svc.lastCount)
	assert.Equal(t, "Successfully created 9 test orders", env.Message)
	assert.JSONEq(t, `{"requested":50,"created":9,"failed":41}`, string(env.Data))
}

func TestGenerateTestOrders_InvalidCount(t *testing.T) {
	for _, q := range []string{"count=1001", "count=-1"} {
		t.Run(q, func(t *testing.T) {
			svc := &mockOrderService{}
			h := newTestRouter(svc)

			w, env := do(t, h, http.MethodPost, "/api/v1/orders/generate-test?"+q, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Count must be between 1 and 1000", env.Error)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestGetStatistics(t *testing.T) {
	svc := &mockOrderService{stats: &order.Statistics{
		TotalOrders:   3,
		PendingOrders: 2,
		PaidOrders:    1,
		CodeStatistics: &uniquecode.Statistics{
			TotalCodes:         10,
			UsedCodes:          3,
			AvailableCodes:     7,
			UsedCodesList:      []string{"01", "02", "03"},
			AvailableCodesList: []string{"04", "05", "06", "07", "08", "09", "10"},
		},
	}}
	h := newTestRouter(svc)

	w, env := do(t, h, http.MethodGet, "/api/v1/orders/statistics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"totalOrders": 3,
		"pendingOrders": 2,
		"paidOrders": 1,
		"cancelledOrders": 0,
		"completedOrders": 0,
		"codeStatistics": {
			"totalCodes": 10,
			"usedCodes": 3,
			"availableCodes": 7,
			"usedCodesList": ["01","02","03"],
			"availableCodesList": ["04","05","06","07","08","09","10"]
		}
	}`, string(env.Data))
}

func TestGetStatistics_Error(t *testing.T) {
	h := newTestRouter(&mockOrderService{err: errors.New("db down")})

	w, env := do(t, h, http.MethodGet, "/api/v1/orders/statistics", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgInternal, env.Error)
}

func TestNotFound(t *testing.T) {
	h := newTestRouter(&mockOrderService{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v2/orders"},
		{http.MethodGet, "/nope"},
		{http.MethodDelete, "/api/v1/orders/1"},
	} {
		w, env := do(t, h, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		assert.Equal(t, "Route not found", env.Error)
	}
}
