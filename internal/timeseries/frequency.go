package timeseries

import (
	"fmt"
	"strings"
	"time"
)

// Frequency identifies the sampling frequency of a series.
type Frequency string

const (
	Daily     Frequency = "D"
	Weekly    Frequency = "W"
	Monthly   Frequency = "M"
	Quarterly Frequency = "Q"
	Yearly    Frequency = "Y"
)

// ParseFrequency parses a frequency code (case-insensitive).
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToUpper(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case Yearly:
		return Yearly, nil
	default:
		return "", fmt.Errorf("timeseries: unknown frequency %q", s)
	}
}

// rank orders frequencies from finest (daily) to coarsest (yearly).
func (f Frequency) rank() int {
	switch f {
	case Daily:
		return 0
	case Weekly:
		return 1
	case Monthly:
		return 2
	case Quarterly:
		return 3
	case Yearly:
		return 4
	default:
		return -1
	}
}

// Coarser reports whether f is a coarser frequency than o.
func (f Frequency) Coarser(o Frequency) bool { return f.rank() > o.rank() }

// PeriodEnd maps a date to the last calendar day of its period at this
// frequency. Weeks end on Friday, the financial-data convention.
func (f Frequency) PeriodEnd(t time.Time) time.Time {
	t = normalize(t)
	switch f {
	case Daily:
		return t
	case Weekly:
		// Friday of the ISO week containing t.
		offset := (int(time.Friday) - int(t.Weekday()) + 7) % 7
		if t.Weekday() == time.Saturday {
			offset = 6
		}
		return t.AddDate(0, 0, offset)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	case Quarterly:
		q := (int(t.Month()) - 1) / 3
		return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 3, -1)
	case Yearly:
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// ApproxDays returns the approximate calendar length of one period, used to
// bound forward-filling during alignment.
func (f Frequency) ApproxDays() int {
	switch f {
	case Daily:
		return 1
	case Weekly:
		return 7
	case Monthly:
		return 31
	case Quarterly:
		return 92
	case Yearly:
		return 366
	default:
		return 1
	}
}
