package sweepers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Purger drops expired run records and reports how many it removed
type Purger interface {
	Purge() int
}

// RunSweeper periodically purges completed runs past their retention window
type RunSweeper struct {
	purger   Purger
	logger   *zerolog.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRunSweeper creates a new sweeper for run record maintenance
func NewRunSweeper(purger Purger, logger *zerolog.Logger, interval time.Duration) *RunSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RunSweeper{
		purger:   purger,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is done or Stop is called
func (s *RunSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting run sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Run sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Run sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Stop signals the sweeper to stop
func (s *RunSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Sweep purges once
func (s *RunSweeper) Sweep() int {
	purged := s.purger.Purge()
	if purged > 0 {
		s.logger.Info().
			Int("purged", purged).
			Msg("Purged expired run records")
	}
	return purged
}
