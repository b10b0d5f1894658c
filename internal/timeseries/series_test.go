package timeseries

import (
	"math"
	"testing"
	"time"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// mk builds a daily test series starting at the given date with one value per
// calendar day.
func mk(start time.Time, vals ...float64) Series {
	points := make([]Point, len(vals))
	for i, v := range vals {
		points[i] = Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	return New("TEST", Daily, points)
}

func approxEq(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) < 1e-9
}

func assertVals(t *testing.T, s Series, want []float64) {
	t.Helper()
	got := s.Values()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if !approxEq(got[i], want[i]) {
			t.Errorf("value[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewSortsAndDeduplicates(t *testing.T) {
	s := New("X", Daily, []Point{
		{Date: d(2024, 1, 3), Value: 3},
		{Date: d(2024, 1, 1), Value: 1},
		{Date: d(2024, 1, 3), Value: 30}, // later entry wins
		{Date: d(2024, 1, 2), Value: 2},
	})

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	assertVals(t, s, []float64{1, 2, 30})
	if v, ok := s.Lookup(d(2024, 1, 3)); !ok || v != 30 {
		t.Errorf("Lookup(Jan 3) = %v, %v; want 30, true", v, ok)
	}
}

func TestSlice(t *testing.T) {
	s := mk(d(2024, 1, 1), 1, 2, 3, 4, 5)

	tests := []struct {
		name       string
		start, end time.Time
		want       []float64
	}{
		{"inner_window", d(2024, 1, 2), d(2024, 1, 4), []float64{2, 3, 4}},
		{"open_start", time.Time{}, d(2024, 1, 3), []float64{1, 2, 3}},
		{"open_end", d(2024, 1, 4), time.Time{}, []float64{4, 5}},
		{"outside_range", d(2025, 1, 1), d(2025, 2, 1), []float64{}},
		{"inverted_window", d(2024, 1, 4), d(2024, 1, 2), []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertVals(t, s.Slice(tt.start, tt.end), tt.want)
		})
	}
}

func TestAsOf(t *testing.T) {
	s := New("X", Monthly, []Point{
		{Date: d(2024, 1, 31), Value: 10},
		{Date: d(2024, 2, 29), Value: 20},
	})

	if v, ok := s.AsOf(d(2024, 2, 15)); !ok || v != 10 {
		t.Errorf("AsOf(Feb 15) = %v, %v; want 10, true", v, ok)
	}
	if _, ok := s.AsOf(d(2024, 1, 1)); ok {
		t.Error("AsOf before first observation should not be ok")
	}
	if v, ok := s.AsOf(d(2024, 12, 31)); !ok || v != 20 {
		t.Errorf("AsOf(Dec 31) = %v, %v; want 20, true", v, ok)
	}
}

func TestArithmeticAlignsOnUnionCalendar(t *testing.T) {
	a := mk(d(2024, 1, 1), 1, 2, 3)
	b := New("B", Daily, []Point{
		{Date: d(2024, 1, 2), Value: 10},
		{Date: d(2024, 1, 3), Value: 20},
		{Date: d(2024, 1, 4), Value: 30},
	})

	sum := a.Add(b)
	if sum.Len() != 4 {
		t.Fatalf("union length = %d, want 4", sum.Len())
	}
	assertVals(t, sum, []float64{math.NaN(), 12, 23, math.NaN()})
}

func TestDivByZeroYieldsNaN(t *testing.T) {
	a := mk(d(2024, 1, 1), 1, 2)
	b := mk(d(2024, 1, 1), 0, 4)
	assertVals(t, a.Div(b), []float64{math.NaN(), 0.5})
}

func TestEmptySeriesPropagates(t *testing.T) {
	var empty Series
	if got := empty.Slice(d(2024, 1, 1), d(2024, 12, 31)); !got.IsEmpty() {
		t.Error("slicing an empty series should stay empty")
	}
	if got := empty.Diff(1); !got.IsEmpty() {
		t.Error("Diff on empty series should stay empty")
	}
	if got := empty.ZScore(10); !got.IsEmpty() {
		t.Error("ZScore on empty series should stay empty")
	}
}
