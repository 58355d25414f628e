package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/prices"
	"github.com/sweeney/spot-outlet/internal/state"
	"github.com/sweeney/spot-outlet/internal/status"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []prices.Day
	err   error
	data  map[prices.Day][]prices.Entry
}

func (s *fakeSource) Fetch(_ context.Context, day prices.Day) (*prices.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, day)
	if s.err != nil {
		return nil, s.err
	}
	return &prices.Schedule{Day: day, Entries: s.data[day]}, nil
}

func (s *fakeSource) Calls() []prices.Day {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]prices.Day(nil), s.calls...)
}

type fakeClock struct {
	now         time.Time
	invalidated int
}

func (c *fakeClock) Now(context.Context) time.Time { return c.now }
func (c *fakeClock) Invalidate()                   { c.invalidated++ }

func hourly(day time.Time, values ...string) []prices.Entry {
	entries := make([]prices.Entry, len(values))
	for i, v := range values {
		start := day.Add(time.Duration(i) * time.Hour)
		entries[i] = prices.Entry{Start: start, End: start.Add(time.Hour), Price: decimal.RequireFromString(v)}
	}
	return entries
}

func setup(t *testing.T, now time.Time) (*Fetcher, *fakeSource, *fakeClock, *state.Store, *status.Tracker) {
	t.Helper()
	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	src := &fakeSource{data: map[prices.Day][]prices.Entry{
		prices.DayOf(d1, time.UTC): hourly(d1, "0.30", "0.30", "0.90"),
		prices.DayOf(d2, time.UTC): hourly(d2, "1.50"),
	}}
	clk := &fakeClock{now: now}
	store := state.New(logic.NewSituation())
	tracker := status.NewTracker(now, status.Config{}, store, nil)
	f := New(src, clk, store, tracker, nil, Config{Location: time.UTC, MinSleep: 100 * time.Second, MaxSleep: 200 * time.Second}, zerolog.Nop())
	return f, src, clk, store, tracker
}

func price(t *testing.T, s logic.Situation) string {
	t.Helper()
	p, ok := s.Price()
	require.True(t, ok, "price should be set")
	return p.StringFixed(2)
}

func TestRunOncePublishesCurrentPrice(t *testing.T) {
	f, src, _, store, tracker := setup(t, time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC))

	f.RunOnce(context.Background())

	assert.Equal(t, "0.30", price(t, store.Load()))
	assert.Len(t, src.Calls(), 1)
	snap := tracker.Snapshot()
	assert.Equal(t, "2024-01-15", snap.Fetch.Day)
	assert.Equal(t, 3, snap.Fetch.Entries)
	assert.Empty(t, snap.Fetch.Err)
}

func TestRunOnceFetchesOncePerDay(t *testing.T) {
	f, src, clk, store, _ := setup(t, time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC))
	ctx := context.Background()

	f.RunOnce(ctx)
	clk.now = clk.now.Add(time.Hour)
	f.RunOnce(ctx)
	clk.now = clk.now.Add(time.Hour)
	f.RunOnce(ctx)

	assert.Len(t, src.Calls(), 1)
	assert.Equal(t, "0.90", price(t, store.Load()))
}

func TestRunOnceRefetchesOnNewDay(t *testing.T) {
	f, src, clk, store, _ := setup(t, time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.RunOnce(ctx)
	_, ok := store.Load().Price()
	assert.False(t, ok, "no entry covers 23:00")

	clk.now = time.Date(2024, 1, 16, 0, 10, 0, 0, time.UTC)
	f.RunOnce(ctx)

	calls := src.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "2024-01-16", calls[1].String())
	assert.Equal(t, "1.50", price(t, store.Load()))
	assert.Equal(t, "2024-01-16", f.Schedule().Day.String())
}

func TestRunOnceFailureKeepsPrice(t *testing.T) {
	f, src, clk, store, tracker := setup(t, time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC))
	ctx := context.Background()
	f.RunOnce(ctx)

	src.err = errors.New("service unavailable")
	clk.now = time.Date(2024, 1, 16, 0, 30, 0, 0, time.UTC)
	f.RunOnce(ctx)
	f.RunOnce(ctx)

	assert.Equal(t, "0.30", price(t, store.Load()), "stale price is kept")
	assert.Equal(t, 2, clk.invalidated)
	assert.Len(t, src.Calls(), 3, "every cycle retries")
	assert.Equal(t, "2024-01-15", f.Schedule().Day.String(), "old schedule is kept")

	snap := tracker.Snapshot()
	assert.Equal(t, "service unavailable", snap.Fetch.Err)
	assert.Equal(t, 2, snap.Fetch.ConsecutiveFailures)
	assert.Equal(t, "2024-01-15", snap.Fetch.Day)
}

func TestRunOnceFailureBeforeFirstSchedule(t *testing.T) {
	f, src, clk, store, _ := setup(t, time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC))
	src.err = errors.New("dns failure")

	f.RunOnce(context.Background())

	_, ok := store.Load().Price()
	assert.False(t, ok)
	assert.Nil(t, f.Schedule())
	assert.Equal(t, 1, clk.invalidated)
}

func TestRunOnceLeavesModeAlone(t *testing.T) {
	f, _, _, store, _ := setup(t, time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC))
	store.Publish(logic.NewSituation().WithMode(logic.ModeManualOff))

	f.RunOnce(context.Background())

	s := store.Load()
	assert.Equal(t, logic.ModeManualOff, s.Mode())
	assert.Equal(t, "0.30", price(t, s))
}

func TestRunOnceNoChangeNoPublish(t *testing.T) {
	f, _, clk, store, _ := setup(t, time.Date(2024, 1, 15, 0, 10, 0, 0, time.UTC))
	ctx := context.Background()
	f.RunOnce(ctx)
	before := store.Load()

	// Same price in the next hour: nothing to publish.
	clk.now = clk.now.Add(time.Hour)
	f.RunOnce(ctx)

	_, changed := store.Update(func(s logic.Situation) logic.Situation { return s })
	assert.False(t, changed)
	assert.True(t, before.Equal(store.Load()))
}

func TestNextSleepWithinBounds(t *testing.T) {
	f, _, _, _, _ := setup(t, time.Now())

	for i := 0; i < 1000; i++ {
		d := f.nextSleep()
		assert.GreaterOrEqual(t, d, 100*time.Second)
		assert.Less(t, d, 200*time.Second)
	}

	f.cfg.MaxSleep = f.cfg.MinSleep
	assert.Equal(t, 100*time.Second, f.nextSleep())
}

func TestRunStopsOnCancel(t *testing.T) {
	f, src, _, _, _ := setup(t, time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC))
	src.err = errors.New("offline")

	ctx, cancel := context.WithCancel(context.Background())
	var slept []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 3 {
			cancel()
		}
		return ctx.Err()
	}

	err := f.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, src.Calls(), 3, "failures never stop the loop")
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, 100*time.Second)
	}
}
