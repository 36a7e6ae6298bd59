package auctions

import (
	"context"
	"log/slog"
	"time"
)

// ExpirySweeper periodically closes auctions whose deadline passed. Auctions
// that receive a late bid are closed by the bidding engine already; the sweeper
// catches the ones nobody touched after their deadline.
type ExpirySweeper struct {
	service   *Service
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

const DefaultSweepBatchSize = 100

func NewExpirySweeper(service *Service, interval time.Duration, batchSize int, logger *slog.Logger) *ExpirySweeper {
	if batchSize < 1 {
		batchSize = DefaultSweepBatchSize
	}
	return &ExpirySweeper{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run sweeps until ctx is cancelled
func (s *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Expiry sweeper started", "interval", s.interval)

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// sweep drains every expired auction, one batch at a time
func (s *ExpirySweeper) sweep(ctx context.Context) {
	for ctx.Err() == nil {
		closed, err := s.service.CloseExpired(ctx, s.batchSize)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Failed to close expired auctions", "error", err)
			}
			return
		}
		if closed > 0 {
			s.logger.Info("Closed expired auctions", "count", closed)
		}
		if closed < s.batchSize {
			return
		}
	}
}
