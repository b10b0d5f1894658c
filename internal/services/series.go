package services

import (
	"context"
	"log/slog"
	"time"

	"marketlens/internal/expr"
	"marketlens/internal/infrastructure"
	"marketlens/internal/store"
	"marketlens/internal/timeseries"
)

// SeriesService evaluates expressions against the stored catalog.
// Derived series are recomputed per request; nothing downstream of the
// store is cached, so revisions to history take effect immediately.
type SeriesService struct {
	store    *store.Store
	resolver expr.Resolver
	limits   expr.Limits
	metrics  *infrastructure.ServiceMetrics
	logger   *slog.Logger
}

// NewSeriesService wires the service. metrics may be nil in tests.
func NewSeriesService(st *store.Store, metrics *infrastructure.ServiceMetrics, logger *slog.Logger) *SeriesService {
	return &SeriesService{
		store:    st,
		resolver: &storeResolver{store: st},
		limits:   expr.DefaultLimits,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "series_service")),
	}
}

// Evaluate computes each expression over its full history and aligns the
// results into one frame, sliced to [start, end] when given. Columns are
// named after their source expression.
func (s *SeriesService) Evaluate(ctx context.Context, exprs []string, start, end time.Time) (timeseries.Frame, error) {
	began := time.Now()

	columns := make([]timeseries.Series, 0, len(exprs))
	for _, src := range exprs {
		out, err := expr.EvaluateWithLimits(ctx, src, s.resolver, s.limits)
		if err != nil {
			s.metrics.RecordEval(ctx, time.Since(began), err)
			s.logger.WarnContext(ctx, "expression rejected",
				slog.String("expression", src),
				slog.String("error", err.Error()))
			return timeseries.Frame{}, err
		}
		out.Code = src
		columns = append(columns, out)
	}

	frame := timeseries.NewFrame(columns...)
	if !start.IsZero() || !end.IsZero() {
		frame = frame.Slice(start, end)
	}

	s.metrics.RecordEval(ctx, time.Since(began), nil)
	s.logger.DebugContext(ctx, "expressions evaluated",
		slog.Int("expressions", len(exprs)),
		slog.Int("rows", frame.Len()),
		slog.Duration("duration", time.Since(began)))

	return frame, nil
}

// EvaluateOne is Evaluate for a single expression, returning the series.
func (s *SeriesService) EvaluateOne(ctx context.Context, src string, start, end time.Time) (timeseries.Series, error) {
	out, err := expr.EvaluateWithLimits(ctx, src, s.resolver, s.limits)
	if err != nil {
		return timeseries.Series{}, err
	}
	if !start.IsZero() || !end.IsZero() {
		out = out.Slice(start, end)
	}
	return out, nil
}

// Catalog lists all stored series with their metadata.
func (s *SeriesService) Catalog(ctx context.Context) ([]store.SeriesMeta, error) {
	return s.store.ListSeries(ctx)
}
