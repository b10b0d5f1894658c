package expr

import (
	"fmt"
	"math"
	"strings"

	"marketlens/internal/timeseries"
)

// call dispatches a function call. The table is closed: anything not listed
// here is an error, which is the whole point of the language.
func (ev *evaluator) call(c *Call) (value, error) {
	switch strings.ToLower(c.Name) {
	case "diff":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		n, err := ev.optIntArg(c, 1, 1)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.Diff(n)), nil

	case "pct":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		n, err := ev.optIntArg(c, 1, 1)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.PctChange(n)), nil

	case "yoy":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		if err := ev.exactArgs(c, 1); err != nil {
			return value{}, err
		}
		return series(s.YoY()), nil

	case "offset":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		n, err := ev.intArg(c, 1)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.Offset(n)), nil

	case "roll":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		w, err := ev.intArg(c, 1)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.RollingMean(w)), nil

	case "rollstd":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		w, err := ev.intArg(c, 1)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.RollingStd(w)), nil

	case "rollsum":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		w, err := ev.intArg(c, 1)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.RollingSum(w)), nil

	case "ewm":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		span, err := ev.intArg(c, 1)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.EWM(span)), nil

	case "zscore":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		w, err := ev.optIntArg(c, 1, 0)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.ZScore(w)), nil

	case "cycle":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		w, err := ev.optIntArg(c, 1, 60)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 2); err != nil {
			return value{}, err
		}
		return series(s.Cycle(w)), nil

	case "resample":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		freqStr, err := ev.stringArg(c, 1)
		if err != nil {
			return value{}, err
		}
		freq, err := timeseries.ParseFrequency(freqStr)
		if err != nil {
			return value{}, &EvalError{Pos: c.Args[1].Pos(), Msg: fmt.Sprintf("unknown frequency %q", freqStr)}
		}
		method := timeseries.AggLast
		if len(c.Args) > 2 {
			m, err := ev.stringArg(c, 2)
			if err != nil {
				return value{}, err
			}
			switch strings.ToLower(m) {
			case "last":
				method = timeseries.AggLast
			case "mean":
				method = timeseries.AggMean
			case "sum":
				method = timeseries.AggSum
			default:
				return value{}, &EvalError{Pos: c.Args[2].Pos(), Msg: fmt.Sprintf("unknown aggregation %q", m)}
			}
		}
		if err := ev.maxArgs(c, 3); err != nil {
			return value{}, err
		}
		return series(s.Resample(freq, method)), nil

	case "fx":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		from, err := ev.stringArg(c, 1)
		if err != nil {
			return value{}, err
		}
		to, err := ev.stringArg(c, 2)
		if err != nil {
			return value{}, err
		}
		if err := ev.maxArgs(c, 3); err != nil {
			return value{}, err
		}
		converted, err := timeseries.Convert(ev.ctx, s, from, to, ev.resolver.ResolveRate)
		if err != nil {
			return value{}, fmt.Errorf("fx %s→%s: %w", from, to, err)
		}
		return series(converted), nil

	case "diffusion":
		cols, err := ev.allSeriesArgs(c, 2)
		if err != nil {
			return value{}, err
		}
		return series(timeseries.NewFrame(cols...).Diffusion()), nil

	case "mean":
		cols, err := ev.allSeriesArgs(c, 2)
		if err != nil {
			return value{}, err
		}
		return series(timeseries.NewFrame(cols...).Mean()), nil

	case "abs":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		if err := ev.exactArgs(c, 1); err != nil {
			return value{}, err
		}
		return series(s.Abs()), nil

	case "log":
		s, err := ev.seriesArg(c, 0)
		if err != nil {
			return value{}, err
		}
		if err := ev.exactArgs(c, 1); err != nil {
			return value{}, err
		}
		return series(s.Log()), nil

	default:
		return value{}, &EvalError{Pos: c.Pos(), Msg: fmt.Sprintf("unknown function %q", c.Name)}
	}
}

func series(s timeseries.Series) value { return value{kind: kindSeries, series: s} }

func (ev *evaluator) exactArgs(c *Call, n int) error {
	if len(c.Args) != n {
		return &EvalError{Pos: c.Pos(), Msg: fmt.Sprintf("%s expects %d argument(s), got %d", c.Name, n, len(c.Args))}
	}
	return nil
}

// maxArgs rejects surplus arguments, pointing at the first one past the
// function's arity.
func (ev *evaluator) maxArgs(c *Call, n int) error {
	if len(c.Args) > n {
		return &EvalError{Pos: c.Args[n].Pos(), Msg: fmt.Sprintf("%s expects at most %d argument(s), got %d", c.Name, n, len(c.Args))}
	}
	return nil
}

func (ev *evaluator) seriesArg(c *Call, i int) (timeseries.Series, error) {
	if i >= len(c.Args) {
		return timeseries.Series{}, &EvalError{Pos: c.Pos(), Msg: fmt.Sprintf("%s is missing argument %d", c.Name, i+1)}
	}
	v, err := ev.eval(c.Args[i])
	if err != nil {
		return timeseries.Series{}, err
	}
	if v.kind != kindSeries {
		return timeseries.Series{}, &EvalError{Pos: c.Args[i].Pos(), Msg: fmt.Sprintf("%s argument %d must be a series", c.Name, i+1)}
	}
	return v.series, nil
}

// allSeriesArgs evaluates every argument as a series, requiring at least min.
func (ev *evaluator) allSeriesArgs(c *Call, min int) ([]timeseries.Series, error) {
	if len(c.Args) < min {
		return nil, &EvalError{Pos: c.Pos(), Msg: fmt.Sprintf("%s expects at least %d series", c.Name, min)}
	}
	out := make([]timeseries.Series, 0, len(c.Args))
	for i := range c.Args {
		s, err := ev.seriesArg(c, i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (ev *evaluator) intArg(c *Call, i int) (int, error) {
	if i >= len(c.Args) {
		return 0, &EvalError{Pos: c.Pos(), Msg: fmt.Sprintf("%s is missing argument %d", c.Name, i+1)}
	}
	v, err := ev.eval(c.Args[i])
	if err != nil {
		return 0, err
	}
	if v.kind != kindNumber || v.num != math.Trunc(v.num) {
		return 0, &EvalError{Pos: c.Args[i].Pos(), Msg: fmt.Sprintf("%s argument %d must be an integer", c.Name, i+1)}
	}
	return int(v.num), nil
}

func (ev *evaluator) optIntArg(c *Call, i, def int) (int, error) {
	if i >= len(c.Args) {
		return def, nil
	}
	return ev.intArg(c, i)
}

func (ev *evaluator) stringArg(c *Call, i int) (string, error) {
	if i >= len(c.Args) {
		return "", &EvalError{Pos: c.Pos(), Msg: fmt.Sprintf("%s is missing argument %d", c.Name, i+1)}
	}
	// Inspect the AST directly: bare identifiers like M or USD are accepted
	// where a string is expected, without resolving them as series.
	switch arg := c.Args[i].(type) {
	case *String:
		return arg.Value, nil
	case *SeriesRef:
		if arg.Field == "" {
			return arg.Code, nil
		}
	}
	return "", &EvalError{Pos: c.Args[i].Pos(), Msg: fmt.Sprintf("%s argument %d must be a string", c.Name, i+1)}
}
