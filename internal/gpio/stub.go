//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chip string, pin int) (Button, error) {
	return nil, errUnsupported
}

// NewRealOutlet returns an error on non-Linux platforms.
func NewRealOutlet(chip string, pin int) (Outlet, error) {
	return nil, errUnsupported
}

// NewRealLED returns an error on non-Linux platforms.
func NewRealLED(chip string, red, green, blue, hz int) (LED, error) {
	return nil, errUnsupported
}
