package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultCleanInterval = 5 * time.Minute

// Sweeper drops state that expired before now and reports how much.
type Sweeper interface {
	Sweep(now time.Time) int
}

// StartCleaner sweeps every interval until ctx is done.
func StartCleaner(ctx context.Context, interval time.Duration, logger *zap.Logger, sweepers map[string]Sweeper) {
	if interval <= 0 {
		interval = DefaultCleanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go cleanupLoop(ctx, interval, logger, sweepers)
}

func cleanupLoop(ctx context.Context, interval time.Duration, logger *zap.Logger, sweepers map[string]Sweeper) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweepOnce(now, logger, sweepers)
		}
	}
}

func sweepOnce(now time.Time, logger *zap.Logger, sweepers map[string]Sweeper) {
	for name, s := range sweepers {
		if n := s.Sweep(now); n > 0 {
			logger.Debug("expired state removed", zap.String("kind", name), zap.Int("count", n))
		}
	}
}
