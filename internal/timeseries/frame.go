package timeseries

import (
	"fmt"
	"math"
	"time"
)

// Frame is an ordered collection of named series sharing one calendar.
type Frame struct {
	names    []string
	columns  map[string]Series
	calendar []time.Time
}

// NewFrame assembles a frame from the given series. Column order follows the
// argument order; every column is aligned (forward-filled per AlignTo rules)
// onto the union calendar of all inputs.
func NewFrame(series ...Series) Frame {
	f := Frame{columns: make(map[string]Series, len(series))}
	for _, s := range series {
		f.calendar = unionCalendar(f.calendar, s.dates)
	}
	for i, s := range series {
		name := s.Code
		if name == "" {
			name = fmt.Sprintf("col%d", i)
		}
		if _, dup := f.columns[name]; dup {
			name = fmt.Sprintf("%s.%d", name, i)
		}
		f.names = append(f.names, name)
		f.columns[name] = s.AlignTo(f.calendar)
	}
	return f
}

// Names returns the column names in order.
func (f Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Calendar returns a copy of the frame's date index.
func (f Frame) Calendar() []time.Time {
	out := make([]time.Time, len(f.calendar))
	copy(out, f.calendar)
	return out
}

// Column returns the aligned series for the given column name.
func (f Frame) Column(name string) (Series, bool) {
	s, ok := f.columns[name]
	return s, ok
}

// Width returns the number of columns.
func (f Frame) Width() int { return len(f.names) }

// Len returns the number of calendar dates.
func (f Frame) Len() int { return len(f.calendar) }

// Slice restricts the frame to the window [start, end].
func (f Frame) Slice(start, end time.Time) Frame {
	out := Frame{columns: make(map[string]Series, len(f.columns))}
	for _, name := range f.names {
		col := f.columns[name].Slice(start, end)
		out.names = append(out.names, name)
		out.columns[name] = col
		if out.calendar == nil {
			out.calendar = col.dates
		}
	}
	if out.calendar == nil {
		out.calendar = []time.Time{}
	}
	return out
}

// Row returns the values of every column at calendar position i, in column
// order.
func (f Frame) Row(i int) []float64 {
	row := make([]float64, len(f.names))
	for j, name := range f.names {
		row[j] = f.columns[name].vals[i]
	}
	return row
}

// Mean returns the cross-sectional average of all columns per date, skipping
// NaN entries. Dates where every column is NaN stay NaN. This is the
// composite used for averaged condition indices.
func (f Frame) Mean() Series {
	vals := make([]float64, len(f.calendar))
	for i := range f.calendar {
		sum, n := 0.0, 0
		for _, name := range f.names {
			v := f.columns[name].vals[i]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			vals[i] = math.NaN()
		} else {
			vals[i] = sum / float64(n)
		}
	}
	dates := make([]time.Time, len(f.calendar))
	copy(dates, f.calendar)
	return Series{Code: "mean", dates: dates, vals: vals}
}
