package timeseries

import (
	"math"
	"time"
)

// AggMethod selects how observations inside a resample bucket collapse.
type AggMethod string

const (
	AggLast AggMethod = "last"
	AggMean AggMethod = "mean"
	AggSum  AggMethod = "sum"
)

// Resample converts the series to a coarser frequency. Observations falling
// in the same target period collapse with the given aggregation; the bucket
// is labeled with its period-end date. Resampling to the same or a finer
// frequency returns the series unchanged (upsampling is handled by AlignTo
// during evaluation, never by inventing observations here).
func (s Series) Resample(freq Frequency, method AggMethod) Series {
	if s.IsEmpty() || !freq.Coarser(s.Freq) {
		out := s
		return out
	}

	var (
		dates []time.Time
		vals  []float64

		bucket    time.Time
		sum       float64
		count     int
		last      float64
		lastValid bool
	)

	flush := func() {
		if bucket.IsZero() {
			return
		}
		var v float64
		switch method {
		case AggMean:
			if count == 0 {
				v = math.NaN()
			} else {
				v = sum / float64(count)
			}
		case AggSum:
			if count == 0 {
				v = math.NaN()
			} else {
				v = sum
			}
		default: // AggLast
			if !lastValid {
				v = math.NaN()
			} else {
				v = last
			}
		}
		dates = append(dates, bucket)
		vals = append(vals, v)
	}

	for i, d := range s.dates {
		end := freq.PeriodEnd(d)
		if !end.Equal(bucket) {
			flush()
			bucket = end
			sum, count, lastValid = 0, 0, false
		}
		v := s.vals[i]
		if !math.IsNaN(v) {
			sum += v
			count++
			last = v
			lastValid = true
		}
	}
	flush()

	return Series{Code: s.Code, Freq: freq, dates: dates, vals: vals}
}

// AlignTo projects the series onto the given calendar, forward-filling each
// calendar date with the last known observation. A fill is only carried for
// at most one source period (by approximate calendar length), so a stale
// monthly print does not masquerade as fresh daily data indefinitely.
func (s Series) AlignTo(calendar []time.Time) Series {
	limit := s.Freq.ApproxDays()
	vals := make([]float64, len(calendar))
	dates := make([]time.Time, len(calendar))

	j := 0
	lastIdx := -1
	for i, d := range calendar {
		d = normalize(d)
		dates[i] = d
		for j < len(s.dates) && !s.dates[j].After(d) {
			lastIdx = j
			j++
		}
		if lastIdx < 0 {
			vals[i] = math.NaN()
			continue
		}
		age := int(d.Sub(s.dates[lastIdx]).Hours() / 24)
		if age > limit {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = s.vals[lastIdx]
	}

	return Series{Code: s.Code, Freq: s.Freq, dates: dates, vals: vals}
}
