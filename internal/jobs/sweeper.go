package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Purger removes expired idempotency tokens and reports how many it removed.
type Purger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Sweeper calls Purger on a fixed interval until its context is cancelled.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	timeout  time.Duration
}

// NewSweeper constructs the sweep loop. interval defaults to 1h.
func NewSweeper(p Purger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{purger: p, interval: interval, timeout: time.Minute}
}

// Run sweeps once immediately, then every interval. It returns ctx.Err() on
// cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweepOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.purger.PurgeExpiredTokens(cctx)
	if err != nil {
		log.Error().Err(err).Msg("idempotency token sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("expired idempotency tokens purged")
	}
}
