package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultCleanupInterval = time.Hour

// Sweeper removes expired sessions and reports how many went away.
type Sweeper interface {
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

// CleanupScheduler runs a Sweeper once on start and then on every tick.
// A tick that lands while a sweep is still running is skipped.
type CleanupScheduler struct {
	sweeper  Sweeper
	interval time.Duration
	running  atomic.Bool
}

func NewCleanupScheduler(s Sweeper, interval time.Duration) *CleanupScheduler {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupScheduler{sweeper: s, interval: interval}
}

// Run blocks until ctx is done.
func (c *CleanupScheduler) Run(ctx context.Context) error {
	log.Info().Str("module", "app.cleanup").Dur("interval", c.interval).Msg("cleanup scheduler started")
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.cleanup").Msg("cleanup scheduler stopped")
			return nil
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep unless one is already in progress.
// It returns the number of removed sessions and whether a sweep ran.
func (c *CleanupScheduler) RunOnce(ctx context.Context) (int, bool) {
	if !c.running.CompareAndSwap(false, true) {
		log.Debug().Str("module", "app.cleanup").Msg("cleanup already running, skipped")
		return 0, false
	}
	defer c.running.Store(false)

	start := time.Now()
	n, err := c.sweeper.CleanupExpiredSessions(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "app.cleanup").Msg("cleanup failed")
		return n, true
	}
	log.Info().Str("module", "app.cleanup").Int("removed", n).Dur("took", time.Since(start)).Msg("cleanup finished")
	return n, true
}
