package order

import (
	"context"
	"math/rand/v2"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/transfer-orders/internal/domain/product"
	"github.com/xenking/transfer-orders/internal/domain/uniquecode"
)

// CodeAllocator hands out unique codes and reports pool usage.
type CodeAllocator interface {
	Allocate(ctx context.Context) (string, error)
	Statistics(ctx context.Context) (*uniquecode.Statistics, error)
}

// ListResult is one page of orders together with the total matching count.
type ListResult struct {
	Orders []Order
	Total  int
	Page   int
	Limit  int
}

// GenerateResult reports the outcome of a test order batch.
type GenerateResult struct {
	Requested int
	Created   int
	Failed    int
}

// Statistics aggregates order counts and code pool usage.
type Statistics struct {
	TotalOrders     int
	PendingOrders   int
	PaidOrders      int
	CancelledOrders int
	CompletedOrders int
	CodeStatistics  *uniquecode.Statistics
}

// Service encapsulates the order lifecycle. Inputs are assumed to be
// validated by the caller.
type Service struct {
	orders  Repository
	codes   CodeAllocator
	catalog []product.Product
	intn    func(n int) int
}

// NewService creates an order Service backed by the given repository and
// code allocator.
func NewService(orders Repository, codes CodeAllocator) *Service {
	return &Service{
		orders:  orders,
		codes:   codes,
		catalog: product.TestCatalog,
		intn:    rand.IntN,
	}
}

// Create allocates a unique code, persists a pending order at FixedPrice and
// returns the stored row. When the store reports a code collision the
// allocation and insert are retried once.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	id, err := s.insert(ctx, req)
	if errors.Is(err, uniquecode.ErrConflict) {
		zctx.From(ctx).Info("Unique code collision, retrying", zap.Error(err))
		id, err = s.insert(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get created order %d", id)
	}
	return o, nil
}

func (s *Service) insert(ctx context.Context, req CreateRequest) (int64, error) {
	code, err := s.codes.Allocate(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "allocate unique code")
	}

	id, err := s.orders.Insert(ctx, &Order{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Price:       FixedPrice,
		UniqueCode:  code,
		Status:      StatusPending,
	})
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}
	return id, nil
}

// Get returns the order with the given id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.FindByID(ctx, id)
}

// GetByUniqueCode returns the order carrying code or ErrNotFound.
func (s *Service) GetByUniqueCode(ctx context.Context, code string) (*Order, error) {
	return s.orders.FindByCode(ctx, code)
}

// List returns a page of all orders, newest first.
func (s *Service) List(ctx context.Context, page Page) (*ListResult, error) {
	return s.list(ctx, "", page)
}

// ListByStatus returns a page of orders in the given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status Status, page Page) (*ListResult, error) {
	return s.list(ctx, status, page)
}

func (s *Service) list(ctx context.Context, status Status, page Page) (*ListResult, error) {
	orders, err := s.orders.List(ctx, status, page.Limit, page.Offset())
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	total, err := s.orders.Count(ctx, status)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}

	return &ListResult{
		Orders: orders,
		Total:  total,
		Page:   page.Page,
		Limit:  page.Limit,
	}, nil
}

// UpdateStatus moves the order to status and returns the refreshed row.
// There is no transition graph: any status may follow any other.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	affected, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, errors.Wrapf(err, "update order %d", id)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.orders.FindByID(ctx, id)
}

// GenerateTestOrders creates count orders for random products from the test
// catalog. Individual failures are logged and counted, never returned.
func (s *Service) GenerateTestOrders(ctx context.Context, count int) GenerateResult {
	lg := zctx.From(ctx)
	res := GenerateResult{Requested: count}

	for i := range count {
		if ctx.Err() != nil {
			lg.Warn("Test order generation interrupted", zap.Int("done", i), zap.Error(ctx.Err()))
			break
		}

		p := product.Pick(s.catalog, s.intn(len(s.catalog)))
		if _, err := s.Create(ctx, CreateRequest{ProductID: p.ID, ProductName: p.Name}); err != nil {
			res.Failed++
			lg.Warn("Test order not created", zap.Int("n", i+1), zap.Error(err))
			continue
		}
		res.Created++
	}

	return res
}

// Statistics returns order counts per status and code pool usage. The reads
// run concurrently and are not mutually consistent under concurrent writes.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var (
		total    int
		byStatus map[Status]int
		codes    *uniquecode.Statistics
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.orders.Count(gctx, "")
		if err != nil {
			return errors.Wrap(err, "count orders")
		}
		total = n
		return nil
	})
	g.Go(func() error {
		m, err := s.orders.CountByStatus(gctx)
		if err != nil {
			return errors.Wrap(err, "count orders by status")
		}
		byStatus = m
		return nil
	})
	g.Go(func() error {
		st, err := s.codes.Statistics(gctx)
		if err != nil {
			return errors.Wrap(err, "code statistics")
		}
		codes = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Statistics{
		TotalOrders:     total,
		PendingOrders:   byStatus[StatusPending],
		PaidOrders:      byStatus[StatusPaid],
		CancelledOrders: byStatus[StatusCancelled],
		CompletedOrders: byStatus[StatusCompleted],
		CodeStatistics:  codes,
	}, nil
}
