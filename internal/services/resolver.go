// Package services implements the application layer between the HTTP
// handlers and the store: expression evaluation, chart management,
// insight processing and health reporting.
package services

import (
	"context"
	"time"

	"marketlens/internal/store"
	"marketlens/internal/timeseries"
)

// storeResolver adapts the store to the expression evaluator. Every
// lookup loads the full stored history; window slicing happens after
// evaluation so transforms see the data before the requested start.
type storeResolver struct {
	store *store.Store
}

func (r *storeResolver) ResolveSeries(ctx context.Context, code, field string) (timeseries.Series, error) {
	return r.store.LoadSeries(ctx, code, field, time.Time{}, time.Time{})
}

// ResolveRate treats FX pairs as ordinary stored series keyed by the
// six-letter pair code.
func (r *storeResolver) ResolveRate(ctx context.Context, pair string) (timeseries.Series, error) {
	return r.store.LoadSeries(ctx, pair, "", time.Time{}, time.Time{})
}
