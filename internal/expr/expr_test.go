package expr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"marketlens/internal/timeseries"
)

type fakeResolver struct {
	series map[string]timeseries.Series
	rates  map[string]timeseries.Series
}

func (r *fakeResolver) ResolveSeries(_ context.Context, code, field string) (timeseries.Series, error) {
	key := code
	if field != "" {
		key = code + ":" + field
	}
	if s, ok := r.series[key]; ok {
		return s, nil
	}
	return timeseries.Series{}, fmt.Errorf("series %s not found", key)
}

func (r *fakeResolver) ResolveRate(_ context.Context, pair string) (timeseries.Series, error) {
	if s, ok := r.rates[pair]; ok {
		return s, nil
	}
	return timeseries.Series{}, fmt.Errorf("pair %s not quoted", pair)
}

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func daily(code string, vals ...float64) timeseries.Series {
	points := make([]timeseries.Point, len(vals))
	for i, v := range vals {
		points[i] = timeseries.Point{Date: day(i), Value: v}
	}
	return timeseries.New(code, timeseries.Daily, points)
}

func testResolver() *fakeResolver {
	return &fakeResolver{
		series: map[string]timeseries.Series{
			"SPX:PX_LAST": daily("SPX:PX_LAST", 100, 102, 101, 105),
			"US10Y":       daily("US10Y", 4.0, 4.1, 4.2, 4.0),
			"DAX":         daily("DAX", 50, 60, 70, 80),
		},
		rates: map[string]timeseries.Series{
			"EURUSD": daily("EURUSD", 1.1, 1.1, 1.1, 1.1),
		},
	}
}

func wantVals(t *testing.T, s timeseries.Series, want []float64) {
	t.Helper()
	got := s.Values()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d (values %v)", len(got), len(want), got)
	}
	for i := range want {
		a, b := got[i], want[i]
		if math.IsNaN(a) && math.IsNaN(b) {
			continue
		}
		if math.Abs(a-b) > 1e-9 {
			t.Errorf("value[%d] = %v, want %v", i, a, b)
		}
	}
}

func TestEvaluateSeriesRef(t *testing.T) {
	got, err := Evaluate(context.Background(), "SPX:PX_LAST", testResolver())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	wantVals(t, got, []float64{100, 102, 101, 105})
}

func TestEvaluateArithmetic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []float64
	}{
		{"scalar_broadcast", "US10Y * 100", []float64{400, 410, 420, 400}},
		{"scalar_add", "US10Y + 1", []float64{5.0, 5.1, 5.2, 5.0}},
		{"flipped_sub", "10 - US10Y", []float64{6.0, 5.9, 5.8, 6.0}},
		{"series_spread", "SPX:PX_LAST - DAX", []float64{50, 42, 31, 25}},
		{"parens_and_neg", "-(US10Y - 4)", []float64{0, -0.1, -0.2, 0}},
		{"scalar_reciprocal", "100 / DAX", []float64{2, 100.0 / 60, 100.0 / 70, 1.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(context.Background(), tt.src, testResolver())
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.src, err)
			}
			wantVals(t, got, tt.want)
		})
	}
}

func TestEvaluateTransforms(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		src  string
		want []float64
	}{
		{"diff", "Diff(SPX:PX_LAST)", []float64{nan, 2, -1, 4}},
		{"diff_n", "Diff(SPX:PX_LAST, 2)", []float64{nan, nan, 1, 3}},
		{"pct", "Pct(DAX)", []float64{nan, 0.2, 1.0 / 6, 1.0 / 7}},
		{"roll", "Roll(DAX, 2)", []float64{nan, 55, 65, 75}},
		{"offset", "Offset(DAX, 1)", []float64{nan, 50, 60, 70}},
		{"nested", "Diff(Roll(DAX, 2))", []float64{nan, nan, 10, 10}},
		{"ewm", "EWM(DAX, 1)", []float64{50, 60, 70, 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(context.Background(), tt.src, testResolver())
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.src, err)
			}
			wantVals(t, got, tt.want)
		})
	}
}

func TestEvaluateFX(t *testing.T) {
	got, err := Evaluate(context.Background(), `FX(DAX, "EUR", "USD")`, testResolver())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	wantVals(t, got, []float64{55, 66, 77, 88})
}

func TestEvaluateFXBareCurrencyIdents(t *testing.T) {
	got, err := Evaluate(context.Background(), "FX(DAX, EUR, USD)", testResolver())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	wantVals(t, got, []float64{55, 66, 77, 88})
}

func TestEvaluateDiffusion(t *testing.T) {
	got, err := Evaluate(context.Background(), "Diffusion(DAX, US10Y)", testResolver())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Day 2: both rise → 100. Day 4: DAX rises, US10Y falls → 50.
	wantVals(t, got, []float64{math.NaN(), 100, 100, 50})
}

func TestEvaluateResample(t *testing.T) {
	got, err := Evaluate(context.Background(), `Resample(DAX, "W", "mean")`, testResolver())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Jan 1–4 2024 (Mon–Thu) all fall in the week ending Friday Jan 5.
	wantVals(t, got, []float64{65})
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown_function", "Exec(SPX:PX_LAST)"},
		{"unknown_series", "NOPE:PX_LAST"},
		{"bare_scalar", "1 + 2"},
		{"trailing_tokens", "DAX DAX"},
		{"unterminated_string", `Resample(DAX, "M`},
		{"missing_paren", "Diff(DAX"},
		{"bad_arity", "YoY(DAX, 2)"},
		{"string_operand", `DAX + "x"`},
		{"non_integer_window", "Roll(DAX, 2.5)"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluate(context.Background(), tt.src, testResolver()); err == nil {
				t.Errorf("Evaluate(%q) succeeded, want error", tt.src)
			}
		})
	}
}

func TestEvaluateRejectsSurplusArguments(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"diff", "Diff(SPX:PX_LAST, 1, 99)"},
		{"pct", "Pct(DAX, 1, 1)"},
		{"roll", "Roll(DAX, 2, 5)"},
		{"ewm", "EWM(DAX, 10, 3)"},
		{"zscore", "ZScore(DAX, 2, 2)"},
		{"cycle", "Cycle(DAX, 60, 60)"},
		{"offset", "Offset(DAX, 1, 1)"},
		{"resample", `Resample(DAX, "W", "mean", "sum")`},
		{"fx", "FX(DAX, EUR, USD, JPY)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(context.Background(), tt.src, testResolver())
			var evalErr *EvalError
			if !errors.As(err, &evalErr) {
				t.Fatalf("Evaluate(%q) err = %T (%v), want *EvalError", tt.src, err, err)
			}
			if !strings.Contains(evalErr.Msg, "at most") {
				t.Errorf("message = %q, want arity complaint", evalErr.Msg)
			}
		})
	}
}

func TestSurplusArgumentPosition(t *testing.T) {
	_, err := Evaluate(context.Background(), "Roll(DAX, 2, 5)", testResolver())
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("err = %T (%v), want *EvalError", err, err)
	}
	// points at the stray third argument
	if evalErr.Pos != 13 {
		t.Errorf("error position = %d, want 13", evalErr.Pos)
	}
}

func TestEvaluateErrorPositions(t *testing.T) {
	_, err := Evaluate(context.Background(), "DAX + Exec(1)", testResolver())
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("err = %T (%v), want *EvalError", err, err)
	}
	if evalErr.Pos != 6 {
		t.Errorf("error position = %d, want 6", evalErr.Pos)
	}
}

func TestLimits(t *testing.T) {
	long := strings.Repeat("(", 5000)
	if _, err := Parse(long); err == nil {
		t.Error("oversized expression should be rejected")
	}

	deep := "DAX" + strings.Repeat("+DAX", 300)
	if _, err := Parse(deep); err == nil {
		t.Error("expression over the node limit should be rejected")
	}
}
