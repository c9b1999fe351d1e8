package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// FixedPrice is charged for every order regardless of product.
var FixedPrice = decimal.NewFromInt(299000)

// Status is the lifecycle state of an order. Any status may follow any other.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusPaid, StatusCancelled, StatusCompleted}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned when no order matches the given id or code.
var ErrNotFound = errors.New("order not found")

// Order is a purchase order with its allocated unique code.
type Order struct {
	ID          int64
	ProductID   int64
	ProductName string
	Price       decimal.Decimal
	UniqueCode  string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for orders. Lookups by id or
// code return ErrNotFound when no row matches; other errors come from the
// store itself.
type Repository interface {
	Insert(ctx context.Context, o *Order) (int64, error)
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindByCode(ctx context.Context, code string) (*Order, error)
	// List returns orders newest first. An empty status lists all orders.
	List(ctx context.Context, status Status, limit, offset int) ([]Order, error)
	// Count counts orders. An empty status counts all orders.
	Count(ctx context.Context, status Status) (int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// UpdateStatus returns the number of affected rows.
	UpdateStatus(ctx context.Context, id int64, status Status) (int64, error)
}

// ValidationError describes malformed input rejected before touching the
// store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Pagination limits.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Test order generation limits.
const (
	DefaultTestOrderCount = 50
	MaxTestOrderCount     = 1000
)

// Page selects a window of a listing. Page numbers start at 1.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Validate checks page >= 1 and 1 <= limit <= MaxLimit.
func (p Page) Validate() error {
	if p.Page < 1 || p.Limit < 1 || p.Limit > MaxLimit {
		return &ValidationError{Field: "page", Message: "Invalid pagination parameters"}
	}
	return nil
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	ProductID   int64
	ProductName string
}

// Validate checks that both fields are present and the product id is
// positive.
func (r CreateRequest) Validate() error {
	if r.ProductID == 0 || strings.TrimSpace(r.ProductName) == "" {
		return &ValidationError{Field: "product", Message: "product_id and product_name are required"}
	}
	if r.ProductID < 0 {
		return &ValidationError{Field: "product_id", Message: "product_id must be a positive number"}
	}
	return nil
}

// ParseStatus converts s into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{
			Field:   "status",
			Message: "Invalid status. Must be one of: pending, paid, cancelled, completed",
		}
	}
	return st, nil
}

// ValidateTestOrderCount checks 1 <= count <= MaxTestOrderCount.
func ValidateTestOrderCount(count int) error {
	if count < 1 || count > MaxTestOrderCount {
		return &ValidationError{Field: "count", Message: "Count must be between 1 and 1000"}
	}
	return nil
}
