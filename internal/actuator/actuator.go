// Package actuator drives the outlet and indicator from the shared Situation.
package actuator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/gpio"
	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/metrics"
	"github.com/sweeney/spot-outlet/internal/state"
	"github.com/sweeney/spot-outlet/internal/status"
)

const (
	// DefaultPoll is the store polling interval.
	DefaultPoll = 50 * time.Millisecond

	eventBuffer = 32
)

// Controller applies each new Situation to the outputs exactly once.
type Controller struct {
	store     *state.Store
	outlet    gpio.Outlet
	led       gpio.LED
	threshold logic.Threshold
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	poll      time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	events chan logic.Event

	applied   bool
	last      logic.Situation
	failing   bool
	failedFor logic.Situation
}

// New creates a Controller. tracker and m may be nil; poll <= 0 means DefaultPoll.
func New(store *state.Store, outlet gpio.Outlet, led gpio.LED, threshold logic.Threshold,
	tracker *status.Tracker, m *metrics.Metrics, poll time.Duration, logger zerolog.Logger) *Controller {
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &Controller{
		store:     store,
		outlet:    outlet,
		led:       led,
		threshold: threshold,
		tracker:   tracker,
		metrics:   m,
		poll:      poll,
		logger:    logger.With().Str("component", "actuator").Logger(),
		now:       time.Now,
		events:    make(chan logic.Event, eventBuffer),
	}
}

// Events delivers one Event per applied Situation. The channel is closed when
// Run returns.
func (c *Controller) Events() <-chan logic.Event {
	return c.events
}

// Step applies the current Situation if it differs from the last one applied.
// It reports whether the outputs were written.
func (c *Controller) Step() bool {
	s := c.store.Load()
	if c.applied && s.Equal(c.last) {
		return false
	}

	a := logic.Decide(s, c.threshold)
	if err := c.write(a); err != nil {
		if !c.failing || !s.Equal(c.failedFor) {
			c.logger.Error().Err(err).Str("situation", s.String()).Msg("actuation failed, will retry")
		}
		c.failing, c.failedFor = true, s
		return false
	}
	if c.failing {
		c.logger.Info().Msg("actuation recovered")
		c.failing = false
	}

	c.applied, c.last = true, s
	at := c.now()
	if c.tracker != nil {
		c.tracker.RecordActuation(at, a)
	}
	c.metrics.Actuation(s, a)
	c.logger.Info().
		Str("situation", s.String()).
		Str("outlet", status.OnOff(a.Outlet)).
		Str("indicator", a.Color.Name).
		Msg("actuation applied")

	select {
	case c.events <- logic.Event{Timestamp: at, Situation: s, Actuation: a}:
	default:
		c.logger.Warn().Str("situation", s.String()).Msg("event buffer full, dropping event")
	}
	return true
}

func (c *Controller) write(a logic.Actuation) error {
	if err := c.outlet.Set(a.Outlet); err != nil {
		return fmt.Errorf("set outlet: %w", err)
	}
	if err := c.led.SetColor(a.Color); err != nil {
		return fmt.Errorf("set indicator: %w", err)
	}
	return nil
}

// Run steps every poll interval until ctx is cancelled, then closes Events.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.events)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	c.logger.Info().Dur("poll", c.poll).Str("threshold", c.threshold.String()).Msg("actuator started")
	for {
		c.Step()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
