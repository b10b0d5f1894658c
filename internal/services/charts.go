package services

import (
	"context"
	"log/slog"
	"time"

	"marketlens/internal/store"
	"marketlens/internal/timeseries"
)

// ChartService manages stored chart definitions and renders their data.
type ChartService struct {
	store  *store.Store
	series *SeriesService
	logger *slog.Logger
}

// NewChartService wires the service.
func NewChartService(st *store.Store, series *SeriesService, logger *slog.Logger) *ChartService {
	return &ChartService{
		store:  st,
		series: series,
		logger: logger.With(slog.String("component", "chart_service")),
	}
}

// List returns all chart definitions.
func (s *ChartService) List(ctx context.Context) ([]store.Chart, error) {
	return s.store.ListCharts(ctx)
}

// Get returns one chart definition.
func (s *ChartService) Get(ctx context.Context, slug string) (store.Chart, error) {
	return s.store.GetChart(ctx, slug)
}

// Save validates the chart's expressions by evaluating them, then
// persists the definition. A chart with a broken expression is rejected
// up front rather than failing at render time.
func (s *ChartService) Save(ctx context.Context, c store.Chart) error {
	if _, err := s.series.Evaluate(ctx, c.Expressions, time.Time{}, time.Time{}); err != nil {
		return err
	}
	if err := s.store.SaveChart(ctx, c); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "chart saved",
		slog.String("slug", c.Slug),
		slog.Int("expressions", len(c.Expressions)))
	return nil
}

// Delete removes a chart definition.
func (s *ChartService) Delete(ctx context.Context, slug string) error {
	if err := s.store.DeleteChart(ctx, slug); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "chart deleted", slog.String("slug", slug))
	return nil
}

// Render evaluates a chart's expressions into a frame for the window.
func (s *ChartService) Render(ctx context.Context, slug string, start, end time.Time) (store.Chart, timeseries.Frame, error) {
	c, err := s.store.GetChart(ctx, slug)
	if err != nil {
		return store.Chart{}, timeseries.Frame{}, err
	}
	frame, err := s.series.Evaluate(ctx, c.Expressions, start, end)
	if err != nil {
		return store.Chart{}, timeseries.Frame{}, err
	}
	return c, frame, nil
}
