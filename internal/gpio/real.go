//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/spot-outlet/internal/logic"
)

// RealButton reads the push button from a GPIO line with pull-up.
type RealButton struct {
	line *gpiocdev.Line
}

// NewRealButton requests pin on chip as an input with pull-up.
func NewRealButton(chip string, pin int) (Button, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	return &RealButton{line: line}, nil
}

// Pressed reports raw 0 (pulled to ground by the button) as pressed.
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 0, nil
}

// Close reconfigures the line to the Pi boot default (input with pull-down)
// and releases it.
func (b *RealButton) Close() error {
	return releaseLine(b.line, "button")
}

// RealOutlet drives the relay line, raw 1 = powered.
type RealOutlet struct {
	line *gpiocdev.Line
}

// NewRealOutlet requests pin on chip as an output, initially off.
func NewRealOutlet(chip string, pin int) (Outlet, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request outlet pin %d: %w", pin, err)
	}
	return &RealOutlet{line: line}, nil
}

// Set writes the relay line.
func (o *RealOutlet) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("write outlet pin: %w", err)
	}
	return nil
}

// Close switches the outlet off and releases the line.
func (o *RealOutlet) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("switch outlet off: %w", err))
	}
	if err := releaseLine(o.line, "outlet"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RealLED drives three GPIO lines with software PWM.
type RealLED struct {
	lines    []*gpiocdev.Line
	channels [3]*softPWM
}

// NewRealLED requests the red, green and blue lines as outputs and starts a
// PWM loop at hz for each.
func NewRealLED(chip string, red, green, blue, hz int) (LED, error) {
	l := &RealLED{}
	for i, pin := range []int{red, green, blue} {
		line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("request led pin %d: %w", pin, err)
		}
		l.lines = append(l.lines, line)
		l.channels[i] = newSoftPWM(line, hz)
	}
	return l, nil
}

// SetColor updates the duty factor of each channel.
func (l *RealLED) SetColor(c logic.Color) error {
	l.channels[0].Set(c.R)
	l.channels[1].Set(c.G)
	l.channels[2].Set(c.B)
	return nil
}

// Close stops the PWM loops, darkens the LED and releases the lines.
func (l *RealLED) Close() error {
	var errs []error
	for _, ch := range l.channels {
		if ch != nil {
			ch.Stop()
		}
	}
	for _, line := range l.lines {
		if err := releaseLine(line, "led"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// releaseLine reconfigures a line to match Raspberry Pi boot defaults
// (input with pull-down) before closing, so attached hardware sees a clean
// state during shutdown or reboot.
func releaseLine(line *gpiocdev.Line, name string) error {
	if line == nil {
		return nil
	}
	var errs []error
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
	}
	if err := line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
	}
	return errors.Join(errs...)
}
