package timeseries

import "math"

// Cycle extracts a smoothed, detrended oscillator for turning-point
// visualization. The series is detrended against a trailing rolling mean,
// the residual is smoothed with an exponentially weighted pass, and the
// result is rescaled into [−100, 100] against its own trailing min/max.
func (s Series) Cycle(window int) Series {
	if window < 2 {
		window = 2
	}

	trend := s.RollingMean(window)
	resid := make([]float64, len(s.vals))
	for i := range s.vals {
		resid[i] = s.vals[i] - trend.vals[i]
	}
	detrended := s.replaceVals(resid)

	span := window / 5
	if span < 2 {
		span = 2
	}
	smooth := detrended.EWM(span)

	lo := smooth.RollingMin(window)
	hi := smooth.RollingMax(window)
	vals := make([]float64, len(s.vals))
	for i := range s.vals {
		v, l, h := smooth.vals[i], lo.vals[i], hi.vals[i]
		if math.IsNaN(v) || math.IsNaN(l) || math.IsNaN(h) {
			vals[i] = math.NaN()
			continue
		}
		if h == l {
			vals[i] = 0
			continue
		}
		vals[i] = (2*(v-l)/(h-l) - 1) * 100
	}
	return s.replaceVals(vals)
}
