package timeseries

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNoFXRoute is returned when no quote chain can convert between two
// currencies.
var ErrNoFXRoute = errors.New("timeseries: no fx route")

// RateLookup resolves an FX quote series by pair code (e.g. "EURUSD",
// meaning the price of one EUR in USD). Convert treats any lookup error as
// "pair unavailable" and moves to the next fallback in the chain.
type RateLookup func(ctx context.Context, pair string) (Series, error)

// Convert re-denominates the series from currency `from` to currency `to`.
// The quote is resolved with a fallback chain: direct pair, reverse pair
// (inverted), then a USD pivot (from→USD times USD→to). The chosen rate is
// aligned to the series calendar with forward fill before multiplying.
func Convert(ctx context.Context, s Series, from, to string, lookup RateLookup) (Series, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || s.IsEmpty() {
		return s, nil
	}

	rate, err := resolveRate(ctx, from, to, lookup)
	if err != nil {
		return Series{}, err
	}

	aligned := rate.AlignTo(s.dates)
	vals := make([]float64, s.Len())
	for i := range vals {
		vals[i] = s.vals[i] * aligned.vals[i]
	}
	return s.replaceVals(vals), nil
}

// resolveRate finds a quote series for from→to.
func resolveRate(ctx context.Context, from, to string, lookup RateLookup) (Series, error) {
	// Direct pair.
	if rate, err := lookup(ctx, from+to); err == nil && !rate.IsEmpty() {
		return rate, nil
	}

	// Reverse pair, inverted.
	if rate, err := lookup(ctx, to+from); err == nil && !rate.IsEmpty() {
		return invert(rate), nil
	}

	// USD pivot: from→USD times USD→to.
	if from == "USD" || to == "USD" {
		return Series{}, fmt.Errorf("%w: %s→%s", ErrNoFXRoute, from, to)
	}
	leg1, err := resolveUSDLeg(ctx, from, true, lookup)
	if err != nil {
		return Series{}, fmt.Errorf("%w: %s→%s", ErrNoFXRoute, from, to)
	}
	leg2, err := resolveUSDLeg(ctx, to, false, lookup)
	if err != nil {
		return Series{}, fmt.Errorf("%w: %s→%s", ErrNoFXRoute, from, to)
	}
	return leg1.Mul(leg2), nil
}

// resolveUSDLeg returns ccy→USD when toUSD is true, otherwise USD→ccy.
func resolveUSDLeg(ctx context.Context, ccy string, toUSD bool, lookup RateLookup) (Series, error) {
	direct, reverse := ccy+"USD", "USD"+ccy
	if !toUSD {
		direct, reverse = reverse, direct
	}
	if rate, err := lookup(ctx, direct); err == nil && !rate.IsEmpty() {
		return rate, nil
	}
	if rate, err := lookup(ctx, reverse); err == nil && !rate.IsEmpty() {
		return invert(rate), nil
	}
	return Series{}, ErrNoFXRoute
}

func invert(s Series) Series {
	vals := make([]float64, s.Len())
	for i, v := range s.vals {
		if v == 0 {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = 1 / v
	}
	return s.replaceVals(vals)
}
