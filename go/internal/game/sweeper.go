package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunSweeper evicts timed-out players every interval until ctx is done.
// It also keeps the round moving when nobody is polling.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("heartbeat monitor started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("heartbeat monitor stopped")
			return
		case <-ticker.Chan():
			if _, err := e.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("heartbeat sweep failed")
			}
		}
	}
}
