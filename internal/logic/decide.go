package logic

import "github.com/shopspring/decimal"

var two = decimal.NewFromInt(2)

// Decide maps a Situation to the outlet state and indicator color.
// Manual modes win over price; in AUTO an unknown price means off.
func Decide(s Situation, threshold Threshold) Actuation {
	switch s.Mode() {
	case ModeManualOn:
		return Actuation{Outlet: true, Color: ColorTurquoise}
	case ModeManualOff:
		return Actuation{Outlet: false, Color: ColorPurple}
	}

	price, ok := s.Price()
	switch {
	case !ok:
		return Actuation{Outlet: false, Color: ColorOff}
	case price.LessThanOrEqual(threshold):
		return Actuation{Outlet: true, Color: ColorGreen}
	case price.LessThanOrEqual(threshold.Mul(two)):
		return Actuation{Outlet: false, Color: ColorOrange}
	default:
		return Actuation{Outlet: false, Color: ColorRed}
	}
}
