package worker

import (
	"context"
	"log/slog"
	"time"

	"usersvc/internal/platform/logging"
	"usersvc/internal/platform/metrics"
)

// Purger deletes revocation entries whose token expired at or before the
// given instant.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Locker guards a sweep so that only one instance runs it at a time.
// *cache.Lock implements it.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(context.Context) (bool, error), ok bool, err error)
}

// RevocationSweeper periodically removes expired entries from the revocation
// store. An expired token is rejected before the store is consulted, so the
// entries only cost space.
type RevocationSweeper struct {
	store    Purger
	interval time.Duration
	logger   *slog.Logger
	lock     Locker
	metrics  *metrics.Metrics
	now      func() time.Time
}

type SweeperOption func(*RevocationSweeper)

// WithLock makes every sweep take lock first and skip the round when another
// instance holds it.
func WithLock(lock Locker) SweeperOption {
	return func(w *RevocationSweeper) { w.lock = lock }
}

func WithMetrics(m *metrics.Metrics) SweeperOption {
	return func(w *RevocationSweeper) { w.metrics = m }
}

func WithClock(now func() time.Time) SweeperOption {
	return func(w *RevocationSweeper) { w.now = now }
}

func NewRevocationSweeper(store Purger, interval time.Duration, logger *slog.Logger, opts ...SweeperOption) *RevocationSweeper {
	w := &RevocationSweeper{
		store:    store,
		interval: interval,
		logger:   logger.With("component", "revocation_sweeper"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start sweeps once per interval until ctx is cancelled.
func (w *RevocationSweeper) Start(ctx context.Context) {
	w.logger.InfoContext(ctx, "revocation sweeper started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "revocation sweeper stopping")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				logging.LogError(ctx, w.logger, "revocation sweep failed", err)
			}
		}
	}
}

// Sweep runs a single purge and returns the number of removed entries.
func (w *RevocationSweeper) Sweep(ctx context.Context) (int64, error) {
	if w.lock != nil {
		release, ok, err := w.lock.TryAcquire(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			w.logger.DebugContext(ctx, "sweep skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			released, err := release(context.WithoutCancel(ctx))
			if err != nil {
				logging.LogError(ctx, w.logger, "failed to release sweep lock", err)
			} else if !released {
				w.logger.WarnContext(ctx, "sweep lock expired before release")
			}
		}()
	}

	n, err := w.store.Purge(ctx, w.now())
	if err != nil {
		return 0, err
	}
	w.metrics.RecordPurged(n)
	if n > 0 {
		w.logger.InfoContext(ctx, "purged expired revoked tokens", "count", n)
	}
	return n, nil
}
