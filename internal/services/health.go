package services

import (
	"context"
	"log/slog"
	"time"

	"marketlens/internal/infrastructure"
	"marketlens/internal/store"
)

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthService reports process and dependency health.
type HealthService struct {
	store   *store.Store
	started time.Time
	logger  *slog.Logger
}

// NewHealthService wires the service.
func NewHealthService(st *store.Store, logger *slog.Logger) *HealthService {
	return &HealthService{
		store:   st,
		started: time.Now(),
		logger:  logger.With(slog.String("component", "health_service")),
	}
}

// Check pings dependencies and reports overall status. "degraded" means
// the process is up but a dependency check failed.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	checks := map[string]string{}
	status := "healthy"

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		status = "degraded"
		s.logger.WarnContext(ctx, "store ping failed", slog.String("error", err.Error()))
	} else {
		checks["store"] = "ok"
	}

	return HealthStatus{
		Status:    status,
		Version:   infrastructure.ServiceVersion,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
}

// Ready reports whether the service can take traffic.
func (s *HealthService) Ready(ctx context.Context) bool {
	return s.store.Ping(ctx) == nil
}
