package gpio

import (
	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/logic"
)

// NullButton is used when no button is wired. It is never pressed.
type NullButton struct{}

// Pressed always reports false.
func (NullButton) Pressed() (bool, error) { return false, nil }

// Close does nothing.
func (NullButton) Close() error { return nil }

// NullOutlet logs outlet writes instead of switching a relay.
type NullOutlet struct {
	logger zerolog.Logger
}

// NewNullOutlet creates a logging-only outlet.
func NewNullOutlet(logger zerolog.Logger) *NullOutlet {
	return &NullOutlet{logger: logger}
}

// Set logs the requested state.
func (n *NullOutlet) Set(on bool) error {
	n.logger.Info().Bool("on", on).Msg("outlet (no hardware)")
	return nil
}

// Close does nothing.
func (n *NullOutlet) Close() error { return nil }

// NullLED logs indicator colors instead of driving an LED.
type NullLED struct {
	logger zerolog.Logger
}

// NewNullLED creates a logging-only LED.
func NewNullLED(logger zerolog.Logger) *NullLED {
	return &NullLED{logger: logger}
}

// SetColor logs the requested color.
func (n *NullLED) SetColor(c logic.Color) error {
	n.logger.Info().Str("color", c.Name).Msg("indicator (no hardware)")
	return nil
}

// Close does nothing.
func (n *NullLED) Close() error { return nil }
