package functions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverdueMarker flips borrowed transactions past their due date to overdue.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper runs MarkOverdue once at start and then every interval.
type Sweeper struct {
	marker   OverdueMarker
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewSweeper(marker OverdueMarker, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{marker: marker, interval: interval, logger: logger, now: time.Now}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.marker.MarkOverdue(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("overdue sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.logger.Info("marked transactions overdue", zap.Int64("count", n))
	}
}
