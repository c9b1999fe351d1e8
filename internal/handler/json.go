package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/transfer-orders/internal/domain/order"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
)

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeFailure writes {"success":false,"error":msg}.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// writeData writes {"success":true,"data":...,"message":msg}. The message is
// omitted when empty.
func writeData(w http.ResponseWriter, status int, msg string, data func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("data")
	data(&e)
	if msg != "" {
		e.FieldStart("message")
		e.Str(msg)
	}
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// writeList writes a page of orders with its total and window.
func writeList(w http.ResponseWriter, res *order.ListResult) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("data")
	e.ArrStart()
	for i := range res.Orders {
		encodeOrder(&e, &res.Orders[i])
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Int(res.Total)
	e.FieldStart("page")
	e.Int(res.Page)
	e.FieldStart("limit")
	e.Int(res.Limit)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("product_id")
	e.Int64(o.ProductID)
	e.FieldStart("product_name")
	e.Str(o.ProductName)
	e.FieldStart("price")
	e.Num(jx.Num(o.Price.String()))
	e.FieldStart("unique_code")
	e.Str(o.UniqueCode)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("updated_at")
	e.Str(o.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeCodeStatistics(e *jx.Encoder, s *uniquecode.Statistics) {
	if s == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("totalCodes")
	e.Int(s.TotalCodes)
	e.FieldStart("usedCodes")
	e.Int(s.UsedCodes)
	e.FieldStart("availableCodes")
	e.Int(s.AvailableCodes)
	e.FieldStart("usedCodesList")
	encodeStrings(e, s.UsedCodesList)
	e.FieldStart("availableCodesList")
	encodeStrings(e, s.AvailableCodesList)
	e.ObjEnd()
}

func encodeStatistics(e *jx.Encoder, s *order.Statistics) {
	e.ObjStart()
	e.FieldStart("totalOrders")
	e.Int(s.TotalOrders)
	e.FieldStart("pendingOrders")
	e.Int(s.PendingOrders)
	e.FieldStart("paidOrders")
	e.Int(s.PaidOrders)
	e.FieldStart("cancelledOrders")
	e.Int(s.CancelledOrders)
	e.FieldStart("completedOrders")
	e.Int(s.CompletedOrders)
	e.FieldStart("codeStatistics")
	encodeCodeStatistics(e, s.CodeStatistics)
	e.ObjEnd()
}

func encodeGenerateResult(e *jx.Encoder, res order.GenerateResult) {
	e.ObjStart()
	e.FieldStart("requested")
	e.Int(res.Requested)
	e.FieldStart("created")
	e.Int(res.Created)
	e.FieldStart("failed")
	e.Int(res.Failed)
	e.ObjEnd()
}

var errBadJSON = &order.ValidationError{Field: "body", Message: msgInvalidJSON}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errBadJSON
	}
	return body, nil
}

// decodeCreateRequest parses {"product_id": <int>, "product_name": <string>}.
// Presence is checked before type so that a missing field wins over a
// malformed one.
func decodeCreateRequest(body []byte) (order.CreateRequest, error) {
	var (
		req          order.CreateRequest
		idPresent    bool
		idNotInteger bool
	)
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.Number:
				n, err := d.Num()
				if err != nil {
					return err
				}
				idPresent = true
				v, err := n.Int64()
				if err != nil {
					idNotInteger = true
					return nil
				}
				req.ProductID = v
				if v == 0 {
					idPresent = false
				}
				return nil
			default:
				idPresent = true
				idNotInteger = true
				return d.Skip()
			}
		case "product_name":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			req.ProductName = s
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errBadJSON
	}

	if !idPresent || req.ProductName == "" {
		return req, &order.ValidationError{Field: "product", Message: "product_id and product_name are required"}
	}
	if idNotInteger {
		return req, &order.ValidationError{Field: "product_id", Message: "product_id must be a positive number"}
	}
	return req, req.Validate()
}

// decodeStatus parses {"status": <string>} into a valid Status.
func decodeStatus(body []byte) (order.Status, error) {
	var raw string
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != "status" || d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		raw = s
		return err
	})
	if err != nil {
		return "", errBadJSON
	}
	return order.ParseStatus(raw)
}
