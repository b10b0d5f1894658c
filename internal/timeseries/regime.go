package timeseries

import "math"

// Regime identifies the position of an indicator in its cycle, from the sign
// of its standardized level and the sign of its momentum.
type Regime int

const (
	RegimeUnknown     Regime = iota
	RegimeExpansion          // level above trend, rising
	RegimeSlowdown           // level above trend, falling
	RegimeContraction        // level below trend, falling
	RegimeRecovery           // level below trend, rising
)

// String returns the regime label.
func (r Regime) String() string {
	switch r {
	case RegimeExpansion:
		return "expansion"
	case RegimeSlowdown:
		return "slowdown"
	case RegimeContraction:
		return "contraction"
	case RegimeRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// Regimes classifies each date of the series. The series is standardized
// over the given window, momentum is the one-period change of the score, and
// the four quadrants of (level sign, momentum sign) map to the four regimes.
// Dates without a defined score or momentum are RegimeUnknown.
func (s Series) Regimes(window int) []Regime {
	score := s.ZScore(window)
	mom := score.Diff(1)

	out := make([]Regime, s.Len())
	for i := range out {
		z, d := score.vals[i], mom.vals[i]
		switch {
		case math.IsNaN(z) || math.IsNaN(d):
			out[i] = RegimeUnknown
		case z >= 0 && d >= 0:
			out[i] = RegimeExpansion
		case z >= 0:
			out[i] = RegimeSlowdown
		case d < 0:
			out[i] = RegimeContraction
		default:
			out[i] = RegimeRecovery
		}
	}
	return out
}
