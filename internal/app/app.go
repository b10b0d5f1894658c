// Package app wires configuration, infrastructure, services and the
// HTTP router into one runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"marketlens/internal/config"
	apierrors "marketlens/internal/errors"
	"marketlens/internal/infrastructure"
	"marketlens/internal/insightfile"
	custommw "marketlens/internal/middleware"
	"marketlens/internal/refresh"
	"marketlens/internal/services"
	"marketlens/internal/store"
	"marketlens/internal/summarize"
	handlers "marketlens/internal/transport/http"
	"marketlens/internal/validation"
	ws "marketlens/internal/websocket"
)

// Application is the dependency container for the server binary.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router *chi.Mux
	Server *http.Server

	Store         *store.Store
	Hub           *ws.Hub
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.ServiceMetrics
	Refresher     *refresh.Scheduler

	SeriesService  *services.SeriesService
	ChartService   *services.ChartService
	InsightService *services.InsightService
	HealthService  *services.HealthService
}

// NewApplication loads config and builds the full dependency graph.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig builds the application around cfg. Split out
// so tests can inject their own configuration.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion))

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	metrics, err := infrastructure.CreateServiceMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("create service metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}
	app.setupRouter()
	app.createServer()
	return app, nil
}

func (a *Application) initializeServices() error {
	st, err := store.Open(a.Config.Store.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.Store = st

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.Hub = hub

	blobs, err := a.buildBlobStore()
	if err != nil {
		return err
	}

	var summarizer summarize.Summarizer
	if key := a.Config.Insights.AnthropicAPIKey; key != "" {
		summarizer = summarize.NewClaude(key, a.Config.Insights.Model, a.Logger)
	} else {
		a.Logger.Warn("anthropic api key not configured, insight summarization disabled")
	}

	a.SeriesService = services.NewSeriesService(st, a.Metrics, a.Logger)
	a.ChartService = services.NewChartService(st, a.SeriesService, a.Logger)
	a.InsightService = services.NewInsightService(st, blobs, summarizer, hub,
		a.Metrics, a.Config.Insights.MaxPages, a.Logger)
	a.HealthService = services.NewHealthService(st, a.Logger)

	a.Refresher = refresh.NewScheduler(a.ChartService, hub, a.Metrics,
		a.Config.Refresh.Cron, a.Logger)
	return nil
}

func (a *Application) buildBlobStore() (insightfile.BlobStore, error) {
	local, err := insightfile.NewLocalStore(a.Config.Insights.Dir)
	if err != nil {
		return nil, fmt.Errorf("insight blob store: %w", err)
	}
	if a.Config.Insights.DriveCredentials == "" || a.Config.Insights.DriveFolderID == "" {
		return local, nil
	}

	driveStore, err := insightfile.NewDriveStore(context.Background(), local,
		a.Config.Insights.DriveCredentials, a.Config.Insights.DriveFolderID, a.Logger)
	if err != nil {
		// local storage still works, so mirroring failure is not fatal
		a.Logger.Warn("drive mirror unavailable, using local storage only",
			slog.String("error", err.Error()))
		return local, nil
	}
	return driveStore, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// ordering matters: request id and real ip first, and the websocket
	// route stays outside the response-wrapping middleware
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	wsHandler := ws.NewHandler(a.Hub, a.Config.WebSocket,
		a.Config.Security.AllowedOrigins, a.Logger)
	r.Handle("/ws", wsHandler)

	r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)

	errorHandler := apierrors.NewErrorHandler(a.Logger, false)

	r.Group(func(r chi.Router) {
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(custommw.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(custommw.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)

		validator := validation.New()
		admin := custommw.AdminToken(a.Config.Security.AdminTokenHash, a.Logger)

		r.Route("/api", func(r chi.Router) {
			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/version", healthHandler.Version)

			seriesHandler := handlers.NewSeriesHandler(a.SeriesService, validator, a.Logger, errorHandler)
			r.Mount("/series", seriesHandler.Routes())
			r.Get("/catalog", handlers.NewCatalogHandler(a.SeriesService, errorHandler).Catalog)

			chartsHandler := handlers.NewChartsHandler(a.ChartService, validator, admin, a.Logger, errorHandler)
			r.Mount("/charts", chartsHandler.Routes())

			insightsHandler := handlers.NewInsightsHandler(a.InsightService, validator, admin,
				a.Config.Insights.MaxUploadBytes, a.Logger, errorHandler)
			r.Mount("/insights", insightsHandler.Routes())
		})

		dashboardHandler := handlers.NewDashboardHandler(a.ChartService, a.Logger, errorHandler)
		r.With(custommw.Compress(5), render.SetContentType(render.ContentTypeHTML)).
			Get("/risk/html", dashboardHandler.Dashboard)
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run starts the server and blocks until shutdown completes.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.Config.Refresh.Enabled {
		if err := a.Refresher.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Stop(shutdownCtx)
}

// Stop shuts everything down in reverse dependency order.
func (a *Application) Stop(ctx context.Context) error {
	if a.Config.Refresh.Enabled && a.Refresher != nil {
		a.Refresher.Stop()
	}

	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error("http server shutdown", slog.String("error", err.Error()))
	}

	// let in-flight summarizations land before closing the store
	done := make(chan struct{})
	go func() {
		a.InsightService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.Logger.Warn("abandoning in-flight summarizations")
	}

	a.Hub.Stop()

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("store close", slog.String("error", err.Error()))
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.Error("metrics shutdown", slog.String("error", err.Error()))
	}

	infrastructure.CloseLogFile()
	a.Logger.Info("shutdown complete")

	// small grace period for the final log flush
	time.Sleep(50 * time.Millisecond)
	return nil
}
