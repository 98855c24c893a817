package cells

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/logging"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
)

// Sweeper periodically removes expired memos whose timers were lost, for
// example across a restart with durable storage.
type Sweeper struct {
	repo     memos.Repository
	interval time.Duration
	clock    func() time.Time
	logger   logging.Logger
}

func NewSweeper(repo memos.Repository, interval time.Duration, clock func() time.Time, logger logging.Logger) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sweeper{repo: repo, interval: interval, clock: clock, logger: logger}
}

// SweepOnce deletes every memo expired at the current time.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock())
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables sweeping.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, s.interval)
			n, err := s.SweepOnce(sweepCtx)
			cancel()

			if err != nil {
				s.logger.Warn(ctx, "sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Debug(ctx, "swept expired memos", "count", n)
			}

		case <-ctx.Done():
			return
		}
	}
}
