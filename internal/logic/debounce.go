package logic

import "time"

// Debouncer filters a sampled two-state input. A new level becomes stable
// only after it has been observed continuously for the window. With a zero
// window every sample is stable immediately.
type Debouncer struct {
	window       time.Duration
	stable       bool
	pending      bool
	pendingSince time.Time
	hasPending   bool
}

// NewDebouncer creates a Debouncer whose stable level starts at false.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Process takes a raw sample and returns the stable level.
func (d *Debouncer) Process(raw bool, now time.Time) bool {
	if raw == d.stable {
		// Back at the stable level; any pending change was a bounce.
		d.hasPending = false
		return d.stable
	}

	if !d.hasPending || d.pending != raw {
		d.pending = raw
		d.pendingSince = now
		d.hasPending = true
	}

	if now.Sub(d.pendingSince) >= d.window {
		d.stable = raw
		d.hasPending = false
	}
	return d.stable
}

// Stable returns the current stable level.
func (d *Debouncer) Stable() bool {
	return d.stable
}
