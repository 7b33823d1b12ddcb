package idempotency

import (
	"context"
	"log/slog"
	"time"
)

type expirer interface {
	CleanExpired(ctx context.Context) (int64, error)
}

type cleanupRecorder interface {
	ObserveIdempotencyCleanup(deleted int64, err error)
}

// Sweeper periodically deletes expired keys from backends that do not
// expire them on their own.
type Sweeper struct {
	store    expirer
	metrics  cleanupRecorder
	logger   *slog.Logger
	interval time.Duration
}

func NewSweeper(store expirer, metrics cleanupRecorder, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, metrics: metrics, logger: logger, interval: interval}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("idempotency sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("idempotency sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.CleanExpired(ctx)
	if s.metrics != nil {
		s.metrics.ObserveIdempotencyCleanup(n, err)
	}
	if err != nil {
		s.logger.Error("failed to clean expired idempotency keys", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("expired idempotency keys removed", "count", n)
	}
}
