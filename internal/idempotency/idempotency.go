// Package idempotency replays the first successful response for requests
// carrying the same Idempotency-Key header.
package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const (
	// Header is the request header carrying the client-chosen key.
	Header = "Idempotency-Key"
	// ReplayedHeader is set on responses served from the store.
	ReplayedHeader = "Idempotent-Replayed"

	// DefaultTTL is how long a completed response is kept.
	DefaultTTL = 24 * time.Hour
	// PendingTTL bounds a reservation whose request never completed, e.g.
	// after a crash. Retries with the same key are rejected until it expires.
	PendingTTL = time.Minute

	maxKeyLen = 255
)

// ErrInProgress is returned by Store.Load while the first request holding
// the key has not finished.
var ErrInProgress = errors.New("idempotent request in progress")

// Response is a stored HTTP response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Store persists reservations and completed responses per key.
type Store interface {
	// Reserve claims key for a new request. It returns false when the key is
	// already reserved or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Load returns the completed response for key, ErrInProgress while the
	// reservation is pending, or nil when the key is unknown.
	Load(ctx context.Context, key string) (*Response, error)
	// Save stores the completed response, replacing the reservation.
	Save(ctx context.Context, key string, resp *Response, ttl time.Duration) error
	// Release drops a reservation so the client may retry.
	Release(ctx context.Context, key string) error
}

// Key returns the trimmed Idempotency-Key header value.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Middleware returns an HTTP middleware that stores the first 2xx response
// for each Idempotency-Key and replays it for repeated keys. Requests without
// the header pass through. Store failures are logged and the request is
// served without idempotency. A reservation is released when the handler
// fails or panics; the panic is then propagated.
func Middleware(store Store, ttl time.Duration) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := Key(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLen {
				writeFailure(w, http.StatusBadRequest, "Idempotency-Key must be at most 255 characters")
				return
			}

			ctx := r.Context()
			lg := zctx.From(ctx).With(zap.String("idempotency_key", key))

			reserved, err := store.Reserve(ctx, key, PendingTTL)
			if err != nil {
				lg.Warn("Idempotency store unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !reserved {
				resp, err := store.Load(ctx, key)
				switch {
				case errors.Is(err, ErrInProgress):
					writeFailure(w, http.StatusConflict, "A request with this Idempotency-Key is already being processed")
				case err != nil:
					lg.Warn("Idempotency lookup failed", zap.Error(err))
					next.ServeHTTP(w, r)
				case resp == nil:
					// Expired between Reserve and Load.
					next.ServeHTTP(w, r)
				default:
					lg.Debug("Replaying idempotent response", zap.Int("status", resp.Status))
					replay(w, resp)
				}
				return
			}

			// The request context may already be cancelled.
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			completed := false
			defer func() {
				if completed {
					return
				}
				rec := recover()
				if err := store.Release(storeCtx, key); err != nil {
					lg.Warn("Idempotency release failed", zap.Error(err))
				}
				if rec != nil {
					panic(rec)
				}
			}()

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status < 200 || status >= 300 {
				return
			}
			completed = true

			resp := &Response{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        buf.Bytes(),
			}
			if err := store.Save(storeCtx, key, resp, ttl); err != nil {
				lg.Warn("Idempotency save failed", zap.Error(err))
			}
		})
	}
}

func replay(w http.ResponseWriter, resp *Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
