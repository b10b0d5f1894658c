package timeseries

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// tableLookup is a RateLookup backed by a fixed pair table, recording the
// order pairs were requested in.
func tableLookup(pairs map[string]Series, asked *[]string) RateLookup {
	return func(_ context.Context, pair string) (Series, error) {
		if asked != nil {
			*asked = append(*asked, pair)
		}
		if s, ok := pairs[pair]; ok {
			return s, nil
		}
		return Series{}, fmt.Errorf("pair %s not quoted", pair)
	}
}

func TestConvertDirectPair(t *testing.T) {
	px := mk(d(2024, 1, 1), 100, 200)
	rate := mk(d(2024, 1, 1), 1.1, 1.2)

	var asked []string
	got, err := Convert(context.Background(), px, "EUR", "USD", tableLookup(map[string]Series{"EURUSD": rate}, &asked))
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	assertVals(t, got, []float64{110, 240})
	if asked[0] != "EURUSD" {
		t.Errorf("first lookup = %s, want direct pair EURUSD", asked[0])
	}
}

func TestConvertReversePairInverted(t *testing.T) {
	px := mk(d(2024, 1, 1), 100)
	rate := mk(d(2024, 1, 1), 0.8) // USDEUR, so EUR→USD is 1/0.8

	got, err := Convert(context.Background(), px, "EUR", "USD", tableLookup(map[string]Series{"USDEUR": rate}, nil))
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	assertVals(t, got, []float64{125})
}

func TestConvertUSDPivot(t *testing.T) {
	px := mk(d(2024, 1, 1), 100)
	pairs := map[string]Series{
		"EURUSD": mk(d(2024, 1, 1), 1.2),  // EUR→USD
		"USDJPY": mk(d(2024, 1, 1), 150),  // USD→JPY
	}

	var asked []string
	got, err := Convert(context.Background(), px, "EUR", "JPY", tableLookup(pairs, &asked))
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	assertVals(t, got, []float64{100 * 1.2 * 150})

	// Fallback order: direct, reverse, then the pivot legs.
	if asked[0] != "EURJPY" || asked[1] != "JPYEUR" {
		t.Errorf("fallback order wrong: %v", asked)
	}
}

func TestConvertNoRoute(t *testing.T) {
	px := mk(d(2024, 1, 1), 100)
	_, err := Convert(context.Background(), px, "EUR", "GBP", tableLookup(nil, nil))
	if !errors.Is(err, ErrNoFXRoute) {
		t.Errorf("err = %v, want ErrNoFXRoute", err)
	}
}

func TestConvertSameCurrencyIsIdentity(t *testing.T) {
	px := mk(d(2024, 1, 1), 100)
	got, err := Convert(context.Background(), px, "USD", "USD", tableLookup(nil, nil))
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	assertVals(t, got, []float64{100})
}

func TestConvertAlignsRateToSeriesCalendar(t *testing.T) {
	px := New("PX", Daily, []Point{
		{Date: d(2024, 1, 1), Value: 100},
		{Date: d(2024, 1, 2), Value: 100},
	})
	// Rate only quoted on Jan 1; Jan 2 forward-fills.
	rate := New("EURUSD", Daily, []Point{{Date: d(2024, 1, 1), Value: 1.5}})

	got, err := Convert(context.Background(), px, "EUR", "USD", tableLookup(map[string]Series{"EURUSD": rate}, nil))
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	assertVals(t, got, []float64{150, 150})
}
