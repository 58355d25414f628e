// Package app wires the outlet activities together and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/spot-outlet/internal/actuator"
	"github.com/sweeney/spot-outlet/internal/button"
	"github.com/sweeney/spot-outlet/internal/clock"
	"github.com/sweeney/spot-outlet/internal/config"
	"github.com/sweeney/spot-outlet/internal/fetcher"
	"github.com/sweeney/spot-outlet/internal/gpio"
	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/metrics"
	"github.com/sweeney/spot-outlet/internal/mqtt"
	"github.com/sweeney/spot-outlet/internal/prices"
	"github.com/sweeney/spot-outlet/internal/state"
	"github.com/sweeney/spot-outlet/internal/status"
	"github.com/sweeney/spot-outlet/internal/version"
	"github.com/sweeney/spot-outlet/internal/web"
)

const (
	ntpTimeout      = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// SignalError is the cancellation cause used when a signal stops the daemon.
type SignalError struct {
	Signal os.Signal
}

func (e SignalError) Error() string {
	return "received " + e.Signal.String()
}

// Option overrides a dependency. Tests use these to substitute fakes.
type Option func(*App)

// WithDevices uses d instead of probing GPIO.
func WithDevices(d *gpio.Devices) Option {
	return func(a *App) { a.devices = d }
}

// WithPublisher uses p instead of connecting to the configured broker.
func WithPublisher(p mqtt.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithSource fetches schedules from s instead of the price service.
func WithSource(s fetcher.Source) Option {
	return func(a *App) { a.source = s }
}

// WithQuerier measures clock offsets with q instead of NTP.
func WithQuerier(q clock.Querier) Option {
	return func(a *App) { a.querier = q }
}

// App aggregates configuration and shared dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// base is the logger without the app component; activities add their own.
	base    zerolog.Logger
	start   time.Time
	store   *state.Store
	metrics *metrics.Metrics
	clock   *clock.Service
	tracker *status.Tracker

	source    fetcher.Source
	querier   clock.Querier
	devices   *gpio.Devices
	publisher mqtt.Publisher
}

// New constructs the application. Hardware and the broker are not touched
// until Run.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		base:    logger,
		start:   time.Now(),
		store:   state.New(logic.NewSituation()),
		metrics: metrics.New(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.source == nil {
		client, err := prices.NewClient(prices.Options{
			BaseURL:   cfg.Prices.BaseURL,
			Area:      cfg.Prices.Area,
			Currency:  cfg.Prices.Currency,
			CAFile:    cfg.Prices.CAFile,
			Timeout:   cfg.Prices.Timeout,
			UserAgent: version.UserAgent(),
		})
		if err != nil {
			return nil, fmt.Errorf("price client: %w", err)
		}
		a.source = client
	}
	if a.querier == nil {
		a.querier = clock.NTPQuerier{Host: cfg.Clock.NTPHost, Timeout: ntpTimeout}
	}

	a.clock = clock.New(a.querier, cfg.Clock.ResyncEvery, logger, a.metrics)
	a.tracker = status.NewTracker(a.start, statusConfig(cfg), a.store, a.clock)
	return a, nil
}

// Store returns the shared Situation store.
func (a *App) Store() *state.Store {
	return a.store
}

// Tracker returns the diagnostics tracker.
func (a *App) Tracker() *status.Tracker {
	return a.tracker
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Threshold:      cfg.Threshold.String(),
		Area:           cfg.Prices.Area,
		Currency:       cfg.Prices.Currency,
		Timezone:       cfg.Prices.Timezone,
		ButtonPollMs:   cfg.Button.Poll.Milliseconds(),
		ActuatorPollMs: cfg.Actuator.Poll.Milliseconds(),
		MinSleepMs:     cfg.Prices.MinSleep.Milliseconds(),
		MaxSleepMs:     cfg.Prices.MaxSleep.Milliseconds(),
		HeartbeatMs:    cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	}
}

func (a *App) openDevices() *gpio.Devices {
	if a.devices != nil {
		return a.devices
	}
	g := a.Config.GPIO
	return gpio.Open(gpio.Pins{
		Chip:   g.Chip,
		Outlet: g.Outlet,
		Button: g.Button,
		Red:    g.Red,
		Green:  g.Green,
		Blue:   g.Blue,
		PWMHz:  g.PWMHz,
	}, a.base)
}

func (a *App) openPublisher() mqtt.Publisher {
	if a.publisher != nil {
		return a.publisher
	}
	if a.Config.MQTT.Broker == "" {
		a.Logger.Warn().Msg("mqtt.broker not configured; event reporting disabled")
		return mqtt.NoopPublisher{}
	}
	p, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:             a.Config.MQTT.Broker,
		ClientID:           a.Config.MQTT.ClientID,
		Logger:             a.base,
		OnConnectionChange: a.tracker.SetMQTTConnected,
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("broker", a.Config.MQTT.Broker).Msg("mqtt unavailable; event reporting disabled")
		return mqtt.NoopPublisher{}
	}
	return p
}

// listen binds the status server address. A bind failure disables the
// status server but not the daemon.
func (a *App) listen() net.Listener {
	addr := a.Config.HTTP.Addr
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		a.Logger.Error().Err(err).Str("addr", addr).Msg("http status server disabled")
		return nil
	}
	return ln
}

// Run starts every activity and blocks until ctx is cancelled. The cause of
// the cancellation, if a SignalError, is reported in the SHUTDOWN event.
func (a *App) Run(ctx context.Context) error {
	devices := a.openDevices()
	defer func() {
		if err := devices.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("release gpio")
		}
	}()
	a.tracker.SetHardware(status.Hardware{
		Button: devices.RealButton,
		Outlet: devices.RealOutlet,
		LED:    devices.RealLED,
	})
	if info := readNetworkInfo(); info != nil {
		a.tracker.SetNetwork(info)
	}

	publisher := a.openPublisher()
	defer publisher.Close()
	a.publishSystem(publisher, "STARTUP", "", true)

	f := fetcher.New(a.source, a.clock, a.store, a.tracker, a.metrics, fetcher.Config{
		Location: a.Config.Location(),
		MinSleep: a.Config.Prices.MinSleep,
		MaxSleep: a.Config.Prices.MaxSleep,
	}, a.base)
	monitor := button.New(devices.Button, a.store, a.metrics, a.Config.Button.Poll, a.Config.Button.Debounce, a.base)
	ctrl := actuator.New(a.store, devices.Outlet, devices.LED, a.Config.Threshold,
		a.tracker, a.metrics, a.Config.Actuator.Poll, a.base)

	a.Logger.Info().
		Str("version", version.Version).
		Str("threshold", a.Config.Threshold.String()).
		Str("area", a.Config.Prices.Area).
		Str("broker", a.Config.MQTT.Broker).
		Str("http", a.Config.HTTP.Addr).
		Msg("started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error {
		report(ctrl.Events(), publisher, a.Logger)
		return nil
	})
	if hb := a.Config.MQTT.Heartbeat; hb > 0 {
		g.Go(func() error { return a.heartbeat(gctx, publisher, hb) })
	}
	if ln := a.listen(); ln != nil {
		srv := web.New(ln.Addr().String(), a.tracker, a.store, a.metrics, a.base)
		g.Go(func() error {
			a.Logger.Info().Stringer("addr", ln.Addr()).Msg("http status server listening")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error().Err(err).Msg("http server error")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err := g.Wait()
	reason := ShutdownReason(context.Cause(ctx))
	a.Logger.Info().Str("reason", reason).Msg("shutting down")
	a.publishSystem(publisher, "SHUTDOWN", reason, true)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ShutdownReason names the signal behind cause, or "UNKNOWN".
func ShutdownReason(cause error) string {
	var se SignalError
	if errors.As(cause, &se) {
		switch se.Signal {
		case syscall.SIGINT:
			return "SIGINT"
		case syscall.SIGTERM:
			return "SIGTERM"
		}
	}
	return "UNKNOWN"
}

// report publishes every actuation event until the channel is closed.
func report(events <-chan logic.Event, publisher mqtt.Publisher, logger zerolog.Logger) {
	for ev := range events {
		if err := publisher.Publish(ev); err != nil {
			logger.Warn().Err(err).Str("situation", ev.Situation.String()).Msg("publish error")
		}
	}
}

func (a *App) heartbeat(ctx context.Context, publisher mqtt.Publisher, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if info := readNetworkInfo(); info != nil {
				a.tracker.SetNetwork(info)
			}
			a.publishSystem(publisher, "HEARTBEAT", "", false)
		}
	}
}

func (a *App) publishSystem(publisher mqtt.Publisher, event, reason string, retained bool) {
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		a.tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := a.tracker.Snapshot()
	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		a.Logger.Warn().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	a.Logger.Debug().Str("event", event).Msg("published system event")
}

// PrintState fetches today's schedule once and writes the current price and
// the AUTO decision to w.
func (a *App) PrintState(ctx context.Context, w io.Writer) error {
	now := a.clock.Now(ctx)
	day := prices.DayOf(now, a.Config.Location())

	sched, err := a.source.Fetch(ctx, day)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	s := logic.NewSituation()
	window := "no entry"
	if e, ok := sched.At(now); ok {
		s = s.WithPrice(e.Price)
		loc := a.Config.Location()
		window = e.Start.In(loc).Format("15:04") + "-" + e.End.In(loc).Format("15:04")
	}
	act := logic.Decide(s, a.Config.Threshold)

	fmt.Fprintf(w, "%s %s: price %s %s/kWh (threshold %s)\n",
		day, window, logic.FormatPrice(s.Price()), a.Config.Prices.Currency, a.Config.Threshold.StringFixed(2))
	fmt.Fprintf(w, "AUTO: outlet %s, indicator %s\n", status.OnOff(act.Outlet), act.Color.Name)
	return nil
}
