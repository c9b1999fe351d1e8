package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is implemented by connection pools such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a CheckFunc that pings p. Use it as a readiness check for
// backing stores.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck returns a CheckFunc that reports unhealthy when the
// number of goroutines exceeds the given threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck returns a CheckFunc that reports unhealthy when a GC pause
// since the previous run exceeds the given threshold. Older pauses are not
// reported again, so the check recovers once pauses shrink.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	var (
		mu     sync.Mutex
		lastGC int64
	)
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		mu.Lock()
		fresh := int(stats.NumGC - lastGC)
		lastGC = stats.NumGC
		mu.Unlock()

		// stats.Pause is most recent first.
		fresh = min(fresh, len(stats.Pause))
		for _, pause := range stats.Pause[:fresh] {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}
