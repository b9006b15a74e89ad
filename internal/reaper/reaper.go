package reaper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"shortlinks/internal/repository"
)

// Config controls how often the reaper runs and what counts as inactive
type Config struct {
	Interval         time.Duration
	InactivityWindow time.Duration
	SweepTimeout     time.Duration // bound for one sweep, both deletes included
}

// DefaultConfig sweeps once a day and removes links idle for a day
func DefaultConfig() Config {
	return Config{
		Interval:         24 * time.Hour,
		InactivityWindow: 24 * time.Hour,
		SweepTimeout:     5 * time.Minute,
	}
}

// Result reports how many links one sweep deleted
type Result struct {
	Expired  int64
	Inactive int64
}

// Reaper periodically deletes expired and inactive links from the store.
// It never touches the cache: stale entries age out by TTL, and the redirect
// path refuses links the store no longer holds.
type Reaper struct {
	repo  repository.LinkRepository
	cfg   Config
	clock func() time.Time
}

// New creates a reaper. Zero config fields fall back to DefaultConfig.
func New(repo repository.LinkRepository, cfg Config) *Reaper {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.InactivityWindow <= 0 {
		cfg.InactivityWindow = def.InactivityWindow
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = def.SweepTimeout
	}
	return &Reaper{repo: repo, cfg: cfg, clock: time.Now}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// A sweep in progress when ctx is cancelled is allowed to finish.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", r.cfg.Interval).
		Dur("inactivity_window", r.cfg.InactivityWindow).
		Msg("Reaper started")

	r.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs the expiry sweep and then the inactivity sweep. Failures are
// logged; the next tick is the retry.
func (r *Reaper) Sweep(ctx context.Context) Result {
	// Detached from ctx so shutdown does not abort a sweep halfway
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SweepTimeout)
	defer cancel()

	now := r.clock().UTC()
	var res Result

	expired, err := r.repo.DeleteExpired(sweepCtx, now)
	if err != nil {
		log.Error().Err(err).Msg("Expiry sweep failed")
	} else {
		res.Expired = expired
	}

	cutoff := now.Add(-r.cfg.InactivityWindow)
	inactive, err := r.repo.DeleteInactive(sweepCtx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Inactivity sweep failed")
	} else {
		res.Inactive = inactive
	}

	log.Info().
		Int64("expired_deleted", res.Expired).
		Int64("inactive_deleted", res.Inactive).
		Time("cutoff", cutoff).
		Msg("Reaper sweep finished")
	return res
}
