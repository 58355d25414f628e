// Package logic contains the pure control logic for the outlet: the operating
// mode state machine, the immutable Situation snapshot and the mapping from a
// Situation to an outlet/indicator actuation.
// This package has NO external I/O (no GPIO, HTTP, MQTT, or time.Sleep).
package logic

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode is the operating mode of the outlet.
type Mode int

const (
	ModeAuto Mode = iota
	ModeManualOn
	ModeManualOff
)

// modeCount is the length of the press cycle.
const modeCount = 3

// Next returns the mode that follows m in the press cycle
// AUTO -> MANUAL_ON -> MANUAL_OFF -> AUTO.
func (m Mode) Next() Mode {
	return (m + 1) % modeCount
}

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeManualOn:
		return "MANUAL_ON"
	case ModeManualOff:
		return "MANUAL_OFF"
	default:
		return "UNKNOWN"
	}
}

// Color is an indicator LED color as per-channel duty factors in [0, 1].
type Color struct {
	Name    string
	R, G, B float64
}

// Indicator colors.
var (
	ColorOff       = Color{Name: "off"}
	ColorGreen     = Color{Name: "green", G: 1}
	ColorOrange    = Color{Name: "orange", R: 1, G: 0.25}
	ColorRed       = Color{Name: "red", R: 1}
	ColorTurquoise = Color{Name: "turquoise", G: 1, B: 1}
	ColorPurple    = Color{Name: "purple", R: 1, B: 1}
)

// Actuation is the desired physical output for a Situation.
type Actuation struct {
	Outlet bool // true = powered
	Color  Color
}

// Event describes an actuation that was applied to the outputs.
type Event struct {
	Timestamp time.Time
	Situation Situation
	Actuation Actuation
}

// Threshold is the maximum acceptable price per kWh for AUTO to power the load.
type Threshold = decimal.Decimal
