package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunSweeper calls SweepEmpty every interval until ctx is done. It catches
// rooms that were created but never joined.
func RunSweeper(ctx context.Context, reg *Registry, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.sweeper").Dur("interval", interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return
		case <-ticker.C:
			reg.SweepEmpty()
		}
	}
}
