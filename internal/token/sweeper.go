package token

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the Sweeper runs by default
const DefaultSweepInterval = time.Hour

// Sweeper periodically removes expired tokens from a Store, independent of
// request traffic. Abandoned reservations are reclaimed here once they age
// past the TTL.
type Sweeper struct {
	store    Store
	interval time.Duration
	ticks    func(time.Duration) (<-chan time.Time, func())
}

// NewSweeper creates a Sweeper for store
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		ticks: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run sweeps on every tick until ctx is cancelled. It always returns nil so it
// can sit in an errgroup next to the HTTP server.
func (s *Sweeper) Run(ctx context.Context) error {
	c, stop := s.ticks(s.interval)
	defer stop()

	slog.Info("Token sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Token sweeper stopped")
			return nil
		case <-c:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and logs the outcome
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.store.Sweep(ctx)
	if err != nil {
		slog.Error("Failed to sweep tokens", "error", err)
		return removed
	}
	if removed > 0 {
		slog.Info("Swept expired tokens", "removed", removed)
	}
	return removed
}
