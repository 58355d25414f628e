package logic

import "github.com/shopspring/decimal"

// Situation is an immutable snapshot of the known price and the current mode.
// Every change produces a new value; the zero value has no price and is AUTO.
type Situation struct {
	price    decimal.Decimal
	hasPrice bool
	mode     Mode
}

// NewSituation returns the startup situation: no price, AUTO.
func NewSituation() Situation {
	return Situation{mode: ModeAuto}
}

// Price returns the current price and whether one is known.
func (s Situation) Price() (decimal.Decimal, bool) {
	return s.price, s.hasPrice
}

// Mode returns the current mode.
func (s Situation) Mode() Mode {
	return s.mode
}

// WithPrice returns a copy of s carrying price p. The mode is unchanged.
func (s Situation) WithPrice(p decimal.Decimal) Situation {
	s.price = p
	s.hasPrice = true
	return s
}

// WithMode returns a copy of s in mode m. The price is unchanged.
func (s Situation) WithMode(m Mode) Situation {
	s.mode = m
	return s
}

// Advance returns a copy of s with the mode moved to the next in the cycle.
func (s Situation) Advance() Situation {
	return s.WithMode(s.mode.Next())
}

// Equal reports whether s and o carry the same mode and the same price.
// Prices compare numerically, so 0.3 and 0.30 are equal.
func (s Situation) Equal(o Situation) bool {
	if s.mode != o.mode || s.hasPrice != o.hasPrice {
		return false
	}
	if !s.hasPrice {
		return true
	}
	return s.price.Equal(o.price)
}

// String renders s for logs, e.g. "AUTO@0.62".
func (s Situation) String() string {
	p, ok := s.Price()
	return s.mode.String() + "@" + FormatPrice(p, ok)
}

// FormatPrice renders a price with two decimals, rounding half away from zero
// (0.615 -> "0.62", 1.995 -> "2.00"). Absent prices render as "n/a".
func FormatPrice(p decimal.Decimal, ok bool) string {
	if !ok {
		return "n/a"
	}
	return p.StringFixed(2)
}
