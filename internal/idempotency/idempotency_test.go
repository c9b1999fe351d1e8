package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/transfer-orders/pkg/httpmiddleware"
)

// --- Mock implementations ---

type memStore struct {
	mu       sync.Mutex
	pending  map[string]bool
	done     map[string]*Response
	released []string
	ttls     []time.Duration
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		pending: make(map[string]bool),
		done:    make(map[string]*Response),
	}
}

func (m *memStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls = append(m.ttls, ttl)
	if m.err != nil {
		return false, m.err
	}
	if m.pending[key] || m.done[key] != nil {
		return false, nil
	}
	m.pending[key] = true
	return true, nil
}

func (m *memStore) Load(_ context.Context, key string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[key] {
		return nil, ErrInProgress
	}
	return m.done[key], nil
}

func (m *memStore) Save(_ context.Context, key string, resp *Response, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	m.done[key] = resp
	return nil
}

func (m *memStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	m.released = append(m.released, key)
	return nil
}

// --- Helpers ---

type countingHandler struct {
	calls  int
	status int
	body   string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_, _ = w.Write([]byte(h.body))
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(Header, key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestMiddleware_ReplaysSuccess(t *testing.T) {
	store := newMemStore()
	next := &countingHandler{status: http.StatusCreated, body: `{"success":true,"data":{"id":1}}`}
	h := Middleware(store, time.Hour)(next)

	first := post(h, "k-1")
	second := post(h, "k-1")

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestMiddleware_NoKeyPassesThrough(t *testing.T) {
	store := newMemStore()
	next := &countingHandler{status: http.StatusCreated, body: `{}`}
	h := Middleware(store, time.Hour)(next)

	post(h, "")
	post(h, "")

	assert.Equal(t, 2, next.calls)
	assert.Empty(t, store.done)
}

func TestMiddleware_FailureReleasesKey(t *testing.T) {
	store := newMemStore()
	next := &countingHandler{status: http.StatusConflict, body: `{"success":false}`}
	h := Middleware(store, time.Hour)(next)

	post(h, "k-2")
	next.status = http.StatusCreated
	w := post(h, "k-2")

	assert.Equal(t, 2, next.calls, "failed attempts can be retried")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"k-2"}, store.released)
}

func TestMiddleware_PanicReleasesKey(t *testing.T) {
	store := newMemStore()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			panic("insert exploded")
		}
		w.WriteHeader(http.StatusCreated)
	})
	h := httpmiddleware.Recovery()(Middleware(store, 0)(next))

	first := post(h, "k-panic")
	second := post(h, "k-panic")

	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code, "retry after a panic is served")
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"k-panic"}, store.released)
	assert.NotNil(t, store.done["k-panic"])
}

func TestMiddleware_PanicPropagates(t *testing.T) {
	store := newMemStore()
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})
	h := Middleware(store, time.Hour)(next)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { post(h, "k-abort") })
	assert.Equal(t, []string{"k-abort"}, store.released)
}

func TestMiddleware_ReservationUsesPendingTTL(t *testing.T) {
	store := newMemStore()
	next := &countingHandler{status: http.StatusCreated, body: `{}`}
	h := Middleware(store, 24*time.Hour)(next)

	post(h, "k-ttl")

	assert.Equal(t, []time.Duration{PendingTTL}, store.ttls)
}

func TestMiddleware_InProgress(t *testing.T) {
	store := newMemStore()
	store.pending["k-3"] = true
	next := &countingHandler{status: http.StatusCreated}
	h := Middleware(store, time.Hour)(next)

	w := post(h, "k-3")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Zero(t, next.calls)
}

func TestMiddleware_StoreDownFailsOpen(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("redis: connection refused")
	next := &countingHandler{status: http.StatusCreated, body: `{}`}
	h := Middleware(store, time.Hour)(next)

	w := post(h, "k-4")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, next.calls)
}

func TestMiddleware_KeyTooLong(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	h := Middleware(newMemStore(), time.Hour)(next)

	w := post(h, strings.Repeat("k", 256))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, next.calls)
}

func TestEncodeDecodeResponse(t *testing.T) {
	in := &Response{Status: 201, ContentType: "application/json", Body: []byte(`{"id":1}`)}

	out, err := decodeResponse(encodeResponse(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeResponse([]byte(`{"body":""}`))
	require.Error(t, err)
}
