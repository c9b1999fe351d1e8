package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/transfer-orders/internal/domain/order"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
)

const orderColumns = `id, product_id, product_name, price, unique_code, status, created_at, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (product_id, product_name, price, unique_code, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByCodeSQL = `SELECT ` + orderColumns + ` FROM orders WHERE unique_code = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	listOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders WHERE status = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	countOrdersSQL = `SELECT COUNT(*) FROM orders`

	countOrdersByStatusSQL = `SELECT COUNT(*) FROM orders WHERE status = $1`

	countGroupedByStatusSQL = `SELECT status, COUNT(*) FROM orders GROUP BY status`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	codeExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE unique_code = $1)`

	usedCodesSQL = `SELECT DISTINCT unique_code FROM orders ORDER BY unique_code`
)

// uniqueCodeConstraint is the constraint guarding order codes in 001_schema.sql.
const uniqueCodeConstraint = "orders_unique_code_key"

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ uniquecode.Store = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and uniquecode.Store backed by
// PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert persists a new order and returns its generated id. A collision on
// the unique code is reported as uniquecode.ErrConflict.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, insertOrderSQL,
		o.ProductID, o.ProductName, o.Price, o.UniqueCode, string(o.Status),
	).Scan(&id)
	if err != nil {
		if isUniqueCodeViolation(err) {
			return 0, fmt.Errorf("inserting order with code %q: %w", o.UniqueCode, uniquecode.ErrConflict)
		}
		return 0, fmt.Errorf("inserting order: %w", err)
	}
	return id, nil
}

// FindByID returns the order with the given id or order.ErrNotFound.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.findOne(ctx, getOrderByIDSQL, id)
}

// FindByCode returns the order carrying the given code or order.ErrNotFound.
func (r *OrderRepository) FindByCode(ctx context.Context, code string) (*order.Order, error) {
	return r.findOne(ctx, getOrderByCodeSQL, code)
}

func (r *OrderRepository) findOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("finding order by %v: %w", arg, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order by %v: %w", arg, err)
	}
	return &o, nil
}

// List returns orders newest first. An empty status lists every order.
func (r *OrderRepository) List(ctx context.Context, status order.Status, limit, offset int) ([]order.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.pool.Query(ctx, listOrdersSQL, limit, offset)
	} else {
		rows, err = r.pool.Query(ctx, listOrdersByStatusSQL, string(status), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return orders, nil
}

// Count counts orders. An empty status counts every order.
func (r *OrderRepository) Count(ctx context.Context, status order.Status) (int, error) {
	var (
		n   int64
		err error
	)
	if status == "" {
		err = r.pool.QueryRow(ctx, countOrdersSQL).Scan(&n)
	} else {
		err = r.pool.QueryRow(ctx, countOrdersByStatusSQL, string(status)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return int(n), nil
}

// CountByStatus returns order counts grouped by status. Statuses without
// orders are absent from the map.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[order.Status]int, error) {
	rows, err := r.pool.Query(ctx, countGroupedByStatusSQL)
	if err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}

	type statusCount struct {
		status string
		n      int64
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (statusCount, error) {
		var sc statusCount
		err := row.Scan(&sc.status, &sc.n)
		return sc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning status counts: %w", err)
	}

	out := make(map[order.Status]int, len(counts))
	for _, c := range counts {
		out[order.Status(c.status)] = int(c.n)
	}
	return out, nil
}

// UpdateStatus sets the status and refreshes updated_at. It returns the
// number of affected rows.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) (int64, error) {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return 0, fmt.Errorf("updating status of order %d: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

// CodeExists reports whether any order, in any status, carries code.
func (r *OrderRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, codeExistsSQL, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking code %q: %w", code, err)
	}
	return exists, nil
}

// UsedCodes returns every distinct code held by an order.
func (r *OrderRepository) UsedCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, usedCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing used codes: %w", err)
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning used codes: %w", err)
	}
	return codes, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.ProductID, &o.ProductName, &o.Price, &o.UniqueCode,
		&status, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func isUniqueCodeViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == uniqueCodeConstraint
}
