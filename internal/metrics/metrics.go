// Package metrics exposes Prometheus instrumentation for the daemon.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/sweeney/spot-outlet/internal/logic"
)

const namespace = "spot_outlet"

// Metrics holds the daemon collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	clockSyncs    *prometheus.CounterVec
	clockOffset   prometheus.Gauge
	presses       *prometheus.CounterVec
	actuations    *prometheus.CounterVec
	price         prometheus.Gauge
	mode          prometheus.Gauge
	outlet        prometheus.Gauge
}

// New builds the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_fetches_total",
			Help:      "Price schedule fetch attempts by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_fetch_duration_seconds",
			Help:      "Duration of price schedule requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		clockSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clock_syncs_total",
			Help:      "Network time synchronisations by result.",
		}, []string{"result"}),
		clockOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clock_offset_seconds",
			Help:      "Offset applied to the local clock.",
		}),
		presses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_changes_total",
			Help:      "Mode changes by source.",
		}, []string{"source"}),
		actuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuations_total",
			Help:      "Applied actuations by indicator color.",
		}, []string{"color"}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_per_kwh",
			Help:      "Current known price per kWh (NaN when unknown).",
		}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "Operating mode: 0 AUTO, 1 MANUAL_ON, 2 MANUAL_OFF.",
		}),
		outlet: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outlet_on",
			Help:      "1 when the outlet is powered.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetches,
		m.fetchDuration,
		m.clockSyncs,
		m.clockOffset,
		m.presses,
		m.actuations,
		m.price,
		m.mode,
		m.outlet,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Fetch records one price schedule request.
func (m *Metrics) Fetch(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(duration.Seconds())
	m.fetches.WithLabelValues(result(err)).Inc()
}

// ClockSync records one network time query.
func (m *Metrics) ClockSync(offset time.Duration, err error) {
	if m == nil {
		return
	}
	m.clockSyncs.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.clockOffset.Set(offset.Seconds())
	}
}

// ModeChange records a mode change from source ("button" or "http").
func (m *Metrics) ModeChange(source string) {
	if m == nil {
		return
	}
	m.presses.WithLabelValues(source).Inc()
}

// Actuation records an applied actuation and the situation behind it.
func (m *Metrics) Actuation(s logic.Situation, a logic.Actuation) {
	if m == nil {
		return
	}
	m.actuations.WithLabelValues(a.Color.Name).Inc()
	m.mode.Set(float64(s.Mode()))
	m.price.Set(priceValue(s.Price()))
	if a.Outlet {
		m.outlet.Set(1)
	} else {
		m.outlet.Set(0)
	}
}

func priceValue(p decimal.Decimal, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	f, _ := p.Float64()
	return f
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
