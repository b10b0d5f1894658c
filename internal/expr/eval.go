package expr

import (
	"context"
	"fmt"

	"marketlens/internal/timeseries"
)

// Resolver supplies stored series to the evaluator.
type Resolver interface {
	// ResolveSeries loads a series by code and optional field ("" means the
	// series' default field).
	ResolveSeries(ctx context.Context, code, field string) (timeseries.Series, error)
	// ResolveRate loads an FX quote series by pair code (e.g. "EURUSD").
	ResolveRate(ctx context.Context, pair string) (timeseries.Series, error)
}

// EvalError reports a semantic failure (unknown function, bad arity, type
// mismatch) with its source position.
type EvalError struct {
	Pos int
	Msg string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluation error at position %d: %s", e.Pos, e.Msg)
}

// value is the evaluator's runtime value: a series, a scalar, or a bare
// string (only legal as a function argument).
type value struct {
	series timeseries.Series
	num    float64
	str    string
	kind   valueKind
}

type valueKind int

const (
	kindSeries valueKind = iota
	kindNumber
	kindString
)

// Evaluate parses and evaluates src against the resolver.
func Evaluate(ctx context.Context, src string, r Resolver) (timeseries.Series, error) {
	return EvaluateWithLimits(ctx, src, r, DefaultLimits)
}

// EvaluateWithLimits parses and evaluates src with explicit limits. The
// result must be a series; a bare scalar expression is an error.
func EvaluateWithLimits(ctx context.Context, src string, r Resolver, limits Limits) (timeseries.Series, error) {
	node, err := ParseWithLimits(src, limits)
	if err != nil {
		return timeseries.Series{}, err
	}

	ev := &evaluator{ctx: ctx, resolver: r}
	v, err := ev.eval(node)
	if err != nil {
		return timeseries.Series{}, err
	}
	if v.kind != kindSeries {
		return timeseries.Series{}, &EvalError{Pos: node.Pos(), Msg: "expression does not produce a series"}
	}
	out := v.series
	if out.Code == "" {
		out.Code = src
	}
	return out, nil
}

type evaluator struct {
	ctx      context.Context
	resolver Resolver
}

func (ev *evaluator) eval(node Node) (value, error) {
	switch n := node.(type) {
	case *Number:
		return value{kind: kindNumber, num: n.Value}, nil

	case *String:
		return value{kind: kindString, str: n.Value}, nil

	case *SeriesRef:
		s, err := ev.resolver.ResolveSeries(ev.ctx, n.Code, n.Field)
		if err != nil {
			return value{}, fmt.Errorf("resolve %s: %w", refName(n), err)
		}
		return value{kind: kindSeries, series: s}, nil

	case *Neg:
		v, err := ev.eval(n.X)
		if err != nil {
			return value{}, err
		}
		switch v.kind {
		case kindNumber:
			v.num = -v.num
			return v, nil
		case kindSeries:
			v.series = v.series.Scale(-1)
			return v, nil
		default:
			return value{}, &EvalError{Pos: n.Pos(), Msg: "cannot negate a string"}
		}

	case *BinOp:
		lhs, err := ev.eval(n.LHS)
		if err != nil {
			return value{}, err
		}
		rhs, err := ev.eval(n.RHS)
		if err != nil {
			return value{}, err
		}
		return ev.binop(n, lhs, rhs)

	case *Call:
		return ev.call(n)

	default:
		return value{}, &EvalError{Pos: node.Pos(), Msg: "unsupported expression node"}
	}
}

func refName(r *SeriesRef) string {
	if r.Field == "" {
		return r.Code
	}
	return r.Code + ":" + r.Field
}

func (ev *evaluator) binop(n *BinOp, lhs, rhs value) (value, error) {
	if lhs.kind == kindString || rhs.kind == kindString {
		return value{}, &EvalError{Pos: n.Pos(), Msg: "strings are not valid arithmetic operands"}
	}

	// scalar ⊕ scalar
	if lhs.kind == kindNumber && rhs.kind == kindNumber {
		var out float64
		switch n.Op {
		case '+':
			out = lhs.num + rhs.num
		case '-':
			out = lhs.num - rhs.num
		case '*':
			out = lhs.num * rhs.num
		case '/':
			if rhs.num == 0 {
				return value{}, &EvalError{Pos: n.Pos(), Msg: "division by zero"}
			}
			out = lhs.num / rhs.num
		}
		return value{kind: kindNumber, num: out}, nil
	}

	// series ⊕ scalar broadcasts.
	if lhs.kind == kindSeries && rhs.kind == kindNumber {
		return value{kind: kindSeries, series: seriesScalarOp(n.Op, lhs.series, rhs.num, false)}, nil
	}
	if lhs.kind == kindNumber && rhs.kind == kindSeries {
		return value{kind: kindSeries, series: seriesScalarOp(n.Op, rhs.series, lhs.num, true)}, nil
	}

	// series ⊕ series aligns on the union calendar.
	var out timeseries.Series
	switch n.Op {
	case '+':
		out = lhs.series.Add(rhs.series)
	case '-':
		out = lhs.series.Sub(rhs.series)
	case '*':
		out = lhs.series.Mul(rhs.series)
	case '/':
		out = lhs.series.Div(rhs.series)
	}
	return value{kind: kindSeries, series: out}, nil
}

// seriesScalarOp applies s ⊕ k (or k ⊕ s when flipped is true).
func seriesScalarOp(op byte, s timeseries.Series, k float64, flipped bool) timeseries.Series {
	switch op {
	case '+':
		return s.AddScalar(k)
	case '-':
		if flipped {
			return s.Scale(-1).AddScalar(k)
		}
		return s.AddScalar(-k)
	case '*':
		return s.Scale(k)
	default: // '/'
		if flipped {
			// k / s as a constant series divided element-wise.
			return s.Scale(0).AddScalar(k).Div(s)
		}
		if k == 0 {
			// Division by a zero scalar: NaN everywhere, like series division.
			return s.Div(s.Scale(0))
		}
		return s.Scale(1 / k)
	}
}
