package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Point is a single dated observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a date-indexed sequence of float64 observations.
// Dates are unique, ascending, and normalized to UTC midnight.
type Series struct {
	Code  string
	Freq  Frequency
	dates []time.Time
	vals  []float64
}

// New builds a Series from points. Points are sorted by date; when the same
// date appears more than once the last value wins.
func New(code string, freq Frequency, points []Point) Series {
	byDate := make(map[time.Time]float64, len(points))
	for _, p := range points {
		byDate[normalize(p.Date)] = p.Value
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	vals := make([]float64, len(dates))
	for i, d := range dates {
		vals[i] = byDate[d]
	}

	return Series{Code: code, Freq: freq, dates: dates, vals: vals}
}

// FromValues builds a Series from parallel date/value slices, which must be
// pre-sorted and unique. It copies both slices.
func FromValues(code string, freq Frequency, dates []time.Time, vals []float64) (Series, error) {
	if len(dates) != len(vals) {
		return Series{}, fmt.Errorf("timeseries: %d dates but %d values", len(dates), len(vals))
	}
	ds := make([]time.Time, len(dates))
	for i, d := range dates {
		ds[i] = normalize(d)
		if i > 0 && !ds[i].After(ds[i-1]) {
			return Series{}, fmt.Errorf("timeseries: dates not strictly ascending at index %d", i)
		}
	}
	vs := make([]float64, len(vals))
	copy(vs, vals)
	return Series{Code: code, Freq: freq, dates: ds, vals: vs}, nil
}

func normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.dates) }

// IsEmpty reports whether the series has no observations.
func (s Series) IsEmpty() bool { return len(s.dates) == 0 }

// Dates returns a copy of the date index.
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Values returns a copy of the observation values.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.vals))
	copy(out, s.vals)
	return out
}

// At returns the observation at position i.
func (s Series) At(i int) Point { return Point{Date: s.dates[i], Value: s.vals[i]} }

// First returns the earliest observation; ok is false for an empty series.
func (s Series) First() (Point, bool) {
	if s.IsEmpty() {
		return Point{}, false
	}
	return s.At(0), true
}

// Last returns the latest observation; ok is false for an empty series.
func (s Series) Last() (Point, bool) {
	if s.IsEmpty() {
		return Point{}, false
	}
	return s.At(s.Len() - 1), true
}

// Lookup returns the value recorded exactly at date d.
func (s Series) Lookup(d time.Time) (float64, bool) {
	d = normalize(d)
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
	if i < len(s.dates) && s.dates[i].Equal(d) {
		return s.vals[i], true
	}
	return math.NaN(), false
}

// AsOf returns the last value recorded on or before date d.
func (s Series) AsOf(d time.Time) (float64, bool) {
	d = normalize(d)
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(d) })
	if i == 0 {
		return math.NaN(), false
	}
	return s.vals[i-1], true
}

// Slice restricts the series to the window [start, end]. Zero times leave the
// corresponding bound open.
func (s Series) Slice(start, end time.Time) Series {
	lo, hi := 0, len(s.dates)
	if !start.IsZero() {
		t := normalize(start)
		lo = sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(t) })
	}
	if !end.IsZero() {
		t := normalize(end)
		hi = sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(t) })
	}
	if lo > hi {
		lo = hi
	}
	out := s.withValues(make([]time.Time, hi-lo), make([]float64, hi-lo))
	copy(out.dates, s.dates[lo:hi])
	copy(out.vals, s.vals[lo:hi])
	return out
}

// DropNaN removes observations whose value is NaN.
func (s Series) DropNaN() Series {
	dates := make([]time.Time, 0, len(s.dates))
	vals := make([]float64, 0, len(s.vals))
	for i, v := range s.vals {
		if !math.IsNaN(v) {
			dates = append(dates, s.dates[i])
			vals = append(vals, v)
		}
	}
	return s.withValues(dates, vals)
}

// Scale multiplies every observation by k.
func (s Series) Scale(k float64) Series {
	return s.mapValues(func(v float64) float64 { return v * k })
}

// AddScalar adds k to every observation.
func (s Series) AddScalar(k float64) Series {
	return s.mapValues(func(v float64) float64 { return v + k })
}

// Abs replaces every observation with its absolute value.
func (s Series) Abs() Series { return s.mapValues(math.Abs) }

// Log replaces every observation with its natural logarithm. Non-positive
// values become NaN.
func (s Series) Log() Series {
	return s.mapValues(func(v float64) float64 {
		if v <= 0 {
			return math.NaN()
		}
		return math.Log(v)
	})
}

// Add returns the element-wise sum of s and o on their union calendar.
func (s Series) Add(o Series) Series { return combine(s, o, func(a, b float64) float64 { return a + b }) }

// Sub returns the element-wise difference of s and o on their union calendar.
func (s Series) Sub(o Series) Series { return combine(s, o, func(a, b float64) float64 { return a - b }) }

// Mul returns the element-wise product of s and o on their union calendar.
func (s Series) Mul(o Series) Series { return combine(s, o, func(a, b float64) float64 { return a * b }) }

// Div returns the element-wise quotient of s and o on their union calendar.
// Division by zero yields NaN.
func (s Series) Div(o Series) Series {
	return combine(s, o, func(a, b float64) float64 {
		if b == 0 {
			return math.NaN()
		}
		return a / b
	})
}

// combine aligns two series on their union calendar (no fill: a date missing
// from either side yields NaN) and applies fn element-wise.
func combine(a, b Series, fn func(x, y float64) float64) Series {
	cal := unionCalendar(a.dates, b.dates)
	vals := make([]float64, len(cal))
	for i, d := range cal {
		av, aok := a.Lookup(d)
		bv, bok := b.Lookup(d)
		if !aok || !bok {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = fn(av, bv)
	}
	freq := a.Freq
	if freq == "" {
		freq = b.Freq
	}
	return Series{Code: a.Code, Freq: freq, dates: cal, vals: vals}
}

// unionCalendar merges two sorted unique date slices.
func unionCalendar(a, b []time.Time) []time.Time {
	out := make([]time.Time, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Before(b[j]):
			out = append(out, a[i])
			i++
		case b[j].Before(a[i]):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func (s Series) withValues(dates []time.Time, vals []float64) Series {
	return Series{Code: s.Code, Freq: s.Freq, dates: dates, vals: vals}
}

func (s Series) mapValues(fn func(float64) float64) Series {
	vals := make([]float64, len(s.vals))
	for i, v := range s.vals {
		vals[i] = fn(v)
	}
	out := s.withValues(make([]time.Time, len(s.dates)), vals)
	copy(out.dates, s.dates)
	return out
}
