// Package refresh re-evaluates every stored chart on a cron schedule so
// broken expressions and stale history surface without waiting for a
// page load, and notifies websocket clients when a cycle completes.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"marketlens/internal/infrastructure"
	"marketlens/internal/services"
	"marketlens/internal/websocket"
)

// maxConcurrent bounds parallel chart evaluations per cycle.
const maxConcurrent = 4

// Scheduler runs periodic chart refresh cycles.
type Scheduler struct {
	charts  *services.ChartService
	hub     *websocket.Hub
	metrics *infrastructure.ServiceMetrics
	cron    *cron.Cron
	spec    string
	logger  *slog.Logger
}

// NewScheduler wires the scheduler. spec is a six-field cron expression
// with a seconds column. hub and metrics may be nil.
func NewScheduler(charts *services.ChartService, hub *websocket.Hub,
	metrics *infrastructure.ServiceMetrics, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		charts:  charts,
		hub:     hub,
		metrics: metrics,
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		logger:  logger.With(slog.String("component", "refresh")),
	}
}

// Start registers the job and begins the schedule.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx := infrastructure.EnsureTraceID(context.Background())
		if err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "refresh cycle failed",
				slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("refresh schedule started", slog.String("spec", s.spec))
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("refresh schedule stopped")
}

// RunOnce evaluates every stored chart concurrently and broadcasts the
// outcome. A failing chart is logged but does not abort the cycle; the
// cycle error reflects the first failure.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	began := time.Now()

	charts, err := s.charts.List(ctx)
	if err != nil {
		s.metrics.RecordRefresh(ctx, time.Since(began), err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	var (
		mu       sync.Mutex
		firstErr error
	)
	for _, c := range charts {
		c := c
		g.Go(func() error {
			if _, _, err := s.charts.Render(gctx, c.Slug, time.Time{}, time.Time{}); err != nil {
				s.logger.WarnContext(gctx, "chart failed to refresh",
					slog.String("slug", c.Slug),
					slog.String("error", err.Error()))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	elapsed := time.Since(began)
	s.metrics.RecordRefresh(ctx, elapsed, firstErr)
	s.logger.InfoContext(ctx, "refresh cycle complete",
		slog.Int("charts", len(charts)),
		slog.Duration("duration", elapsed),
		slog.Bool("clean", firstErr == nil))

	if s.hub != nil {
		s.hub.BroadcastRefreshComplete(len(charts), elapsed)
	}
	return firstErr
}
