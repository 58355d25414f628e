// Package gpio provides the outlet's physical I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The null implementation logs intended writes when hardware is absent.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/logic"
)

// Button reads the manual override push button.
type Button interface {
	// Pressed reports whether the button is held down.
	// The raw line is active low: raw 0 = pressed.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Outlet switches the load relay.
type Outlet interface {
	// Set powers the outlet (raw 1) or cuts it (raw 0).
	Set(on bool) error

	// Close releases GPIO resources, leaving the outlet off.
	Close() error
}

// LED drives the RGB status indicator.
type LED interface {
	// SetColor applies per-channel duty factors in [0, 1].
	SetColor(c logic.Color) error

	// Close releases GPIO resources, leaving the LED dark.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinOutlet = 18
	DefaultPinButton = 23
	DefaultPinRed    = 17
	DefaultPinGreen  = 27
	DefaultPinBlue   = 22
)

// Pins selects the chip and line offsets used by Open.
type Pins struct {
	Chip   string
	Outlet int
	Button int
	Red    int
	Green  int
	Blue   int
	PWMHz  int
}

// Devices is the set of I/O devices selected at startup.
type Devices struct {
	Button Button
	Outlet Outlet
	LED    LED

	// Real* report whether the device is backed by hardware.
	RealButton bool
	RealOutlet bool
	RealLED    bool
}

// Open probes each device once. A device whose lines cannot be acquired is
// replaced by its null implementation so the daemon keeps running.
func Open(p Pins, logger zerolog.Logger) *Devices {
	log := logger.With().Str("component", "gpio").Logger()
	d := &Devices{}

	if b, err := NewRealButton(p.Chip, p.Button); err != nil {
		log.Warn().Err(err).Int("pin", p.Button).Msg("button unavailable, using null button")
		d.Button = NullButton{}
	} else {
		d.Button, d.RealButton = b, true
	}

	if o, err := NewRealOutlet(p.Chip, p.Outlet); err != nil {
		log.Warn().Err(err).Int("pin", p.Outlet).Msg("outlet unavailable, using null outlet")
		d.Outlet = NewNullOutlet(log)
	} else {
		d.Outlet, d.RealOutlet = o, true
	}

	if l, err := NewRealLED(p.Chip, p.Red, p.Green, p.Blue, p.PWMHz); err != nil {
		log.Warn().Err(err).Msg("led unavailable, using null led")
		d.LED = NewNullLED(log)
	} else {
		d.LED, d.RealLED = l, true
	}

	return d
}

// Close releases every device.
func (d *Devices) Close() error {
	var errs []error
	for _, c := range []interface{ Close() error }{d.Button, d.Outlet, d.LED} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
