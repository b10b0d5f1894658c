package timeseries

import (
	"math"
	"time"
)

// Diff returns the n-period difference: x[t] − x[t−n]. The first n
// observations are NaN.
func (s Series) Diff(n int) Series {
	if n <= 0 {
		n = 1
	}
	vals := make([]float64, len(s.vals))
	for i := range s.vals {
		if i < n {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = s.vals[i] - s.vals[i-n]
	}
	return s.replaceVals(vals)
}

// PctChange returns the n-period percent change: x[t]/x[t−n] − 1.
func (s Series) PctChange(n int) Series {
	if n <= 0 {
		n = 1
	}
	vals := make([]float64, len(s.vals))
	for i := range s.vals {
		if i < n || s.vals[i-n] == 0 {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = s.vals[i]/s.vals[i-n] - 1
	}
	return s.replaceVals(vals)
}

// YoY returns the year-over-year percent change. Rather than assuming a
// fixed period count per year, each date is compared with the last
// observation on or before the same date one year earlier.
func (s Series) YoY() Series {
	vals := make([]float64, len(s.vals))
	for i, d := range s.dates {
		base, ok := s.AsOf(d.AddDate(-1, 0, 0))
		if !ok || base == 0 || math.IsNaN(base) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = (s.vals[i]/base - 1) * 100
	}
	return s.replaceVals(vals)
}

// Offset shifts values forward by n periods (a lag); negative n shifts
// backward (a lead). The index is unchanged; vacated slots are NaN.
func (s Series) Offset(n int) Series {
	vals := make([]float64, len(s.vals))
	for i := range vals {
		j := i - n
		if j < 0 || j >= len(s.vals) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = s.vals[j]
	}
	return s.replaceVals(vals)
}

// RollingMean returns the trailing window mean. Dates with fewer than window
// prior observations are NaN; NaN observations inside a full window poison
// that window.
func (s Series) RollingMean(window int) Series {
	return s.rolling(window, func(w []float64) float64 { return mean(w) })
}

// RollingStd returns the trailing window sample standard deviation.
func (s Series) RollingStd(window int) Series {
	return s.rolling(window, func(w []float64) float64 { return std(w) })
}

// RollingSum returns the trailing window sum.
func (s Series) RollingSum(window int) Series {
	return s.rolling(window, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum
	})
}

// RollingMin returns the trailing window minimum.
func (s Series) RollingMin(window int) Series {
	return s.rolling(window, func(w []float64) float64 {
		m := math.Inf(1)
		for _, v := range w {
			m = math.Min(m, v)
		}
		return m
	})
}

// RollingMax returns the trailing window maximum.
func (s Series) RollingMax(window int) Series {
	return s.rolling(window, func(w []float64) float64 {
		m := math.Inf(-1)
		for _, v := range w {
			m = math.Max(m, v)
		}
		return m
	})
}

// EWM returns the exponentially weighted mean with the given span
// (alpha = 2/(span+1)). NaN observations carry the previous state forward.
func (s Series) EWM(span int) Series {
	if span < 1 {
		span = 1
	}
	alpha := 2.0 / (float64(span) + 1.0)
	vals := make([]float64, len(s.vals))
	state := math.NaN()
	for i, v := range s.vals {
		switch {
		case math.IsNaN(v):
			// keep state
		case math.IsNaN(state):
			state = v
		default:
			state = alpha*v + (1-alpha)*state
		}
		vals[i] = state
	}
	return s.replaceVals(vals)
}

// ZScore standardizes the series. With window > 0 it uses a rolling mean and
// standard deviation; with window == 0 the full-sample moments. A zero
// standard deviation yields NaN.
func (s Series) ZScore(window int) Series {
	if window > 0 {
		m := s.RollingMean(window)
		sd := s.RollingStd(window)
		vals := make([]float64, len(s.vals))
		for i := range s.vals {
			vals[i] = zscore(s.vals[i], m.vals[i], sd.vals[i])
		}
		return s.replaceVals(vals)
	}

	clean := make([]float64, 0, len(s.vals))
	for _, v := range s.vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	m, sd := mean(clean), std(clean)
	vals := make([]float64, len(s.vals))
	for i := range s.vals {
		vals[i] = zscore(s.vals[i], m, sd)
	}
	return s.replaceVals(vals)
}

func zscore(x, m, sd float64) float64 {
	if math.IsNaN(x) || math.IsNaN(m) || math.IsNaN(sd) || sd == 0 {
		return math.NaN()
	}
	return (x - m) / sd
}

func (s Series) rolling(window int, fn func([]float64) float64) Series {
	if window < 1 {
		window = 1
	}
	vals := make([]float64, len(s.vals))
	for i := range s.vals {
		if i+1 < window {
			vals[i] = math.NaN()
			continue
		}
		w := s.vals[i+1-window : i+1]
		if hasNaN(w) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = fn(w)
	}
	return s.replaceVals(vals)
}

func hasNaN(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func mean(w []float64) float64 {
	if len(w) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

// std is the sample standard deviation (n−1 denominator).
func std(w []float64) float64 {
	if len(w) < 2 {
		return math.NaN()
	}
	m := mean(w)
	ss := 0.0
	for _, v := range w {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(w)-1))
}

// replaceVals keeps the date index and swaps in a new value slice.
func (s Series) replaceVals(vals []float64) Series {
	dates := make([]time.Time, len(s.dates))
	copy(dates, s.dates)
	return Series{Code: s.Code, Freq: s.Freq, dates: dates, vals: vals}
}
