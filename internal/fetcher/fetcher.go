// Package fetcher keeps the shared Situation's price in step with the
// schedule published by the price service.
package fetcher

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/metrics"
	"github.com/sweeney/spot-outlet/internal/prices"
	"github.com/sweeney/spot-outlet/internal/state"
	"github.com/sweeney/spot-outlet/internal/status"
)

// Source fetches the schedule for one day.
type Source interface {
	Fetch(ctx context.Context, day prices.Day) (*prices.Schedule, error)
}

// Clock supplies corrected wall time.
type Clock interface {
	Now(ctx context.Context) time.Time
	Invalidate()
}

// Config holds fetcher tunables.
type Config struct {
	Location *time.Location
	MinSleep time.Duration
	MaxSleep time.Duration
}

// Fetcher owns the cached schedule. Only Run's goroutine touches it.
type Fetcher struct {
	source  Source
	clock   Clock
	store   *state.Store
	tracker *status.Tracker
	metrics *metrics.Metrics
	cfg     Config
	logger  zerolog.Logger

	// jitter returns a duration in [0, n).
	jitter func(n int64) int64
	sleep  func(ctx context.Context, d time.Duration) error

	schedule *prices.Schedule
}

// New creates a Fetcher. tracker and m may be nil.
func New(source Source, clock Clock, store *state.Store, tracker *status.Tracker, m *metrics.Metrics, cfg Config, logger zerolog.Logger) *Fetcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxSleep < cfg.MinSleep {
		cfg.MaxSleep = cfg.MinSleep
	}
	return &Fetcher{
		source:  source,
		clock:   clock,
		store:   store,
		tracker: tracker,
		metrics: m,
		cfg:     cfg,
		logger:  logger.With().Str("component", "fetcher").Logger(),
		jitter:  rand.Int64N,
		sleep:   sleepCtx,
	}
}

// Schedule returns the cached schedule, or nil before the first success.
func (f *Fetcher) Schedule() *prices.Schedule {
	return f.schedule
}

// RunOnce refreshes the schedule if the day has changed and publishes the
// price in effect now.
func (f *Fetcher) RunOnce(ctx context.Context) {
	now := f.clock.Now(ctx)
	day := prices.DayOf(now, f.cfg.Location)

	if f.schedule == nil || f.schedule.Day != day {
		f.refresh(ctx, day)
	}

	entry, ok := f.schedule.At(now)
	if !ok {
		return
	}
	next, changed := f.store.Update(func(s logic.Situation) logic.Situation {
		return s.WithPrice(entry.Price)
	})
	if changed {
		f.logger.Info().
			Str("price", entry.Price.StringFixed(2)).
			Time("from", entry.Start).
			Str("situation", next.String()).
			Msg("price changed")
	}
}

func (f *Fetcher) refresh(ctx context.Context, day prices.Day) {
	start := time.Now()
	s, err := f.source.Fetch(ctx, day)
	f.metrics.Fetch(time.Since(start), err)

	if err != nil {
		f.logger.Warn().Err(err).Stringer("day", day).Msg("price fetch failed")
		f.clock.Invalidate()
	} else {
		f.schedule = s
		f.logger.Info().Stringer("day", day).Int("entries", len(s.Entries)).Msg("schedule fetched")
	}

	if f.tracker != nil {
		cachedDay, entries := "", 0
		if f.schedule != nil {
			cachedDay, entries = f.schedule.Day.String(), len(f.schedule.Entries)
		}
		f.tracker.RecordFetch(start, cachedDay, entries, err)
	}
}

// Run calls RunOnce, then sleeps a random interval in [MinSleep, MaxSleep),
// until ctx is cancelled. It returns ctx.Err().
func (f *Fetcher) Run(ctx context.Context) error {
	f.logger.Info().Dur("min_sleep", f.cfg.MinSleep).Dur("max_sleep", f.cfg.MaxSleep).Msg("fetcher started")
	for {
		f.RunOnce(ctx)
		if err := f.sleep(ctx, f.nextSleep()); err != nil {
			return err
		}
	}
}

func (f *Fetcher) nextSleep() time.Duration {
	span := int64(f.cfg.MaxSleep - f.cfg.MinSleep)
	if span <= 0 {
		return f.cfg.MinSleep
	}
	return f.cfg.MinSleep + time.Duration(f.jitter(span))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
