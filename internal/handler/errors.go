package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/transfer-orders/internal/domain/order"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
)

const (
	msgInternal         = "Internal server error"
	msgOrderNotFound    = "Order not found"
	msgInvalidOrderID   = "Invalid order ID"
	msgInvalidJSON      = "Invalid JSON body"
	msgInvalidCode      = "Invalid unique code format"
	msgCodesUnavailable = "Unable to generate unique code after maximum attempts"
)

// writeError maps a service error to an HTTP status and error envelope.
// Unclassified errors are logged and reported as an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *order.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFailure(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, order.ErrNotFound):
		writeFailure(w, http.StatusNotFound, msgOrderNotFound)
	case errors.Is(err, uniquecode.ErrAllocationExhausted), errors.Is(err, uniquecode.ErrConflict):
		zctx.From(r.Context()).Warn("Unique code unavailable", zap.Error(err))
		writeFailure(w, http.StatusConflict, msgCodesUnavailable)
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, msgInternal)
	}
}
