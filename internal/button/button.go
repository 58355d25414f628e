// Package button turns presses of the override button into mode changes.
package button

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/gpio"
	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/metrics"
	"github.com/sweeney/spot-outlet/internal/state"
)

// DefaultPoll is the button sampling interval.
const DefaultPoll = 20 * time.Millisecond

// Monitor polls a button and advances the mode once per press.
type Monitor struct {
	button  gpio.Button
	store   *state.Store
	metrics *metrics.Metrics
	poll    time.Duration
	logger  zerolog.Logger

	debounce *logic.Debouncer
	now      func() time.Time

	// lastErr suppresses repeated logging of the same read failure.
	lastErr string
}

// New creates a Monitor. poll <= 0 means DefaultPoll. A press or release
// must be seen for at least debounce before it counts; zero disables that.
func New(b gpio.Button, store *state.Store, m *metrics.Metrics, poll, debounce time.Duration, logger zerolog.Logger) *Monitor {
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &Monitor{
		button:   b,
		store:    store,
		metrics:  m,
		poll:     poll,
		logger:   logger.With().Str("component", "button").Logger(),
		debounce: logic.NewDebouncer(debounce),
		now:      time.Now,
	}
}

// Run waits for a press, advances the mode, then waits for the release.
// It returns ctx.Err() when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	m.logger.Info().Dur("poll", m.poll).Msg("button monitor started")
	for {
		if err := m.waitFor(ctx, ticker, true); err != nil {
			return err
		}
		m.press()
		if err := m.waitFor(ctx, ticker, false); err != nil {
			return err
		}
	}
}

func (m *Monitor) press() {
	next, _ := m.store.Update(logic.Situation.Advance)
	m.metrics.ModeChange("button")
	m.logger.Info().Str("mode", next.Mode().String()).Str("situation", next.String()).Msg("button pressed")
}

// waitFor polls until the button reads as want.
func (m *Monitor) waitFor(ctx context.Context, ticker *time.Ticker, want bool) error {
	for {
		if m.sample() == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sample reads the button and returns the debounced level. A failed read
// leaves the level unchanged.
func (m *Monitor) sample() bool {
	pressed, err := m.button.Pressed()
	if err != nil {
		if err.Error() != m.lastErr {
			m.logger.Warn().Err(err).Msg("button read failed")
			m.lastErr = err.Error()
		}
		return m.debounce.Stable()
	}
	if m.lastErr != "" {
		m.logger.Info().Msg("button read recovered")
		m.lastErr = ""
	}
	return m.debounce.Process(pressed, m.now())
}
