package timeseries

import (
	"math"
	"time"
)

// Diffusion computes a diffusion index over the frame's columns: for each
// date, the percentage of constituents whose value rose versus the previous
// calendar date. Constituents with a NaN on either side of the comparison are
// excluded from both numerator and denominator; dates with no comparable
// constituent are NaN.
func (f Frame) Diffusion() Series {
	vals := make([]float64, len(f.calendar))
	for i := range f.calendar {
		if i == 0 {
			vals[i] = math.NaN()
			continue
		}
		up, n := 0, 0
		for _, name := range f.names {
			col := f.columns[name]
			cur, prev := col.vals[i], col.vals[i-1]
			if math.IsNaN(cur) || math.IsNaN(prev) {
				continue
			}
			n++
			if cur > prev {
				up++
			}
		}
		if n == 0 {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = float64(up) / float64(n) * 100
	}
	dates := make([]time.Time, len(f.calendar))
	copy(dates, f.calendar)
	return Series{Code: "diffusion", dates: dates, vals: vals}
}
