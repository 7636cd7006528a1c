package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Reaper periodically removes idle and finished sessions.
type Reaper struct {
	cron     *cron.Cron
	sessions *Sessions
	ttl      time.Duration
	logger   *slog.Logger
}

func NewReaper(sessions *Sessions, ttl time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		cron:     cron.New(),
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
	}
}

// Start schedules the sweep on spec, a cron expression such as "@every 1m".
func (r *Reaper) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.Sweep); err != nil {
		return fmt.Errorf("scheduling session reaper: %w", err)
	}
	r.cron.Start()
	return nil
}

// Sweep runs a single pass.
func (r *Reaper) Sweep() {
	if n := r.sessions.Reap(r.ttl); n > 0 {
		r.logger.Info("reaped sessions", "count", n, "remaining", r.sessions.Len())
	}
}

// Stop unschedules the sweep. The returned context is done once a running
// sweep has finished.
func (r *Reaper) Stop() context.Context {
	return r.cron.Stop()
}
