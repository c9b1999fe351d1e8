package uniquecode

import (
	"context"
	"math/rand/v2"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxAttempts is the probe budget of a single Allocate call.
const DefaultMaxAttempts = 100

var (
	// ErrAllocationExhausted is returned when no free code was found within
	// the attempt budget. Free codes may still exist: probing is random.
	ErrAllocationExhausted = errors.New("unable to generate unique code after maximum attempts")
	// ErrConflict is returned by stores when an insert collides with an
	// existing code. Callers may allocate again and retry.
	ErrConflict = errors.New("unique code already taken")
)

// Store is the read path the allocator needs into persisted orders.
type Store interface {
	// CodeExists reports whether any persisted order carries code.
	CodeExists(ctx context.Context, code string) (bool, error)
	// UsedCodes returns the codes of all persisted orders.
	UsedCodes(ctx context.Context) ([]string, error)
}

// Statistics summarizes pool usage at the moment of the call.
type Statistics struct {
	TotalCodes         int
	UsedCodes          int
	AvailableCodes     int
	UsedCodesList      []string
	AvailableCodesList []string
}

// Config holds allocator settings.
type Config struct {
	// Pool defaults to DefaultPool when zero.
	Pool Pool
	// MaxAttempts defaults to DefaultMaxAttempts when not positive.
	MaxAttempts int
	// MeterProvider receives probe counters. Nil disables metrics.
	MeterProvider metric.MeterProvider
}

// Allocator finds codes not yet used by any persisted order.
type Allocator struct {
	store       Store
	pool        Pool
	maxAttempts int
	intn        func(n int) int

	probes    metric.Int64Counter
	allocated metric.Int64Counter
	exhausted metric.Int64Counter
}

// NewAllocator creates an Allocator probing the given store.
func NewAllocator(store Store, cfg Config) (*Allocator, error) {
	if cfg.Pool.Size() == 0 {
		cfg.Pool = DefaultPool()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = noop.NewMeterProvider()
	}

	meter := cfg.MeterProvider.Meter("github.com/xenking/transfer-orders/uniquecode")
	a := &Allocator{
		store:       store,
		pool:        cfg.Pool,
		maxAttempts: cfg.MaxAttempts,
		intn:        rand.IntN,
	}

	var err error
	if a.probes, err = meter.Int64Counter("orders.unique_code.probes",
		metric.WithDescription("Store lookups made while allocating unique codes"),
	); err != nil {
		return nil, errors.Wrap(err, "probes counter")
	}
	if a.allocated, err = meter.Int64Counter("orders.unique_code.allocated",
		metric.WithDescription("Unique codes handed out"),
	); err != nil {
		return nil, errors.Wrap(err, "allocated counter")
	}
	if a.exhausted, err = meter.Int64Counter("orders.unique_code.exhausted",
		metric.WithDescription("Allocations that ran out of attempts"),
	); err != nil {
		return nil, errors.Wrap(err, "exhausted counter")
	}

	return a, nil
}

// Pool returns the pool the allocator draws from.
func (a *Allocator) Pool() Pool {
	return a.pool
}

// Allocate draws candidates uniformly from the whole pool and returns the
// first one the store does not know about. A store error aborts immediately.
//
// The check and the subsequent insert are not atomic; stores are expected to
// enforce uniqueness and report collisions as ErrConflict.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code := Format(a.intn(a.pool.Size()) + 1)

		a.probes.Add(ctx, 1)
		exists, err := a.store.CodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrapf(err, "probe code %s", code)
		}
		if exists {
			continue
		}

		a.allocated.Add(ctx, 1)
		trace.SpanFromContext(ctx).AddEvent("unique code allocated", trace.WithAttributes(
			attribute.String("unique_code", code),
			attribute.Int("attempts", attempt),
		))
		return code, nil
	}

	a.exhausted.Add(ctx, 1)
	return "", ErrAllocationExhausted
}

// AvailableCodes returns the pool codes not used by any persisted order.
func (a *Allocator) AvailableCodes(ctx context.Context) ([]string, error) {
	persisted, err := a.store.UsedCodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list used codes")
	}
	return a.pool.Available(persisted), nil
}

// Statistics reads every persisted code and reports pool usage. Nothing is
// cached between calls.
func (a *Allocator) Statistics(ctx context.Context) (*Statistics, error) {
	persisted, err := a.store.UsedCodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list used codes")
	}

	used := a.pool.Used(persisted)
	available := a.pool.Available(used)
	return &Statistics{
		TotalCodes:         a.pool.Size(),
		UsedCodes:          len(used),
		AvailableCodes:     len(available),
		UsedCodesList:      used,
		AvailableCodesList: available,
	}, nil
}
