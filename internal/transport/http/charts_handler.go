package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "marketlens/internal/errors"
	"marketlens/internal/exporter"
	"marketlens/internal/services"
	"marketlens/internal/store"
	"marketlens/internal/validation"
)

// ChartsHandler serves stored chart definitions and their data.
type ChartsHandler struct {
	service      *services.ChartService
	validator    *validation.Validator
	admin        func(http.Handler) http.Handler
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewChartsHandler creates the handler. admin guards the mutating routes.
func NewChartsHandler(service *services.ChartService, validator *validation.Validator,
	admin func(http.Handler) http.Handler, logger *slog.Logger,
	errorHandler *apierrors.ErrorHandler) *ChartsHandler {
	return &ChartsHandler{
		service:      service,
		validator:    validator,
		admin:        admin,
		logger:       logger.With(slog.String("component", "charts_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the chart routes. Reads are open, writes require the
// admin token.
func (h *ChartsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.With(h.admin).Post("/", h.Save)

	r.Route("/{slug}", func(r chi.Router) {
		r.Use(h.SlugCtx)
		r.Get("/", h.Get)
		r.Get("/data", h.Data)
		r.With(h.admin).Put("/", h.Save)
		r.With(h.admin).Delete("/", h.Delete)
	})
	return r
}

// SlugCtx validates the slug parameter.
func (h *ChartsHandler) SlugCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "slug") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("slug", "chart slug is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// List handles GET /api/charts.
func (h *ChartsHandler) List(w http.ResponseWriter, r *http.Request) {
	charts, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   charts,
		"count":  len(charts),
	})
}

// Get handles GET /api/charts/{slug}.
func (h *ChartsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   c,
	})
}

// ChartRequest is the body of POST and PUT chart routes.
type ChartRequest struct {
	Slug        string          `json:"slug" validate:"required,slug"`
	Title       string          `json:"title" validate:"required,max=256"`
	Group       string          `json:"group" validate:"required,max=128"`
	Expressions []string        `json:"expressions" validate:"required,min=1,max=16,dive,required"`
	Style       json.RawMessage `json:"style,omitempty"`
}

// Save handles POST /api/charts and PUT /api/charts/{slug}. On PUT the
// path slug wins over the body slug.
func (h *ChartsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req ChartRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r,
			apierrors.New(http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON"))
		return
	}
	if slug := chi.URLParam(r, "slug"); slug != "" {
		req.Slug = slug
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	c := store.Chart{
		Slug:        req.Slug,
		Title:       req.Title,
		Group:       req.Group,
		Expressions: req.Expressions,
		Style:       req.Style,
	}
	if err := h.service.Save(r.Context(), c); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "chart saved", slog.String("slug", c.Slug))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   c,
	})
}

// Delete handles DELETE /api/charts/{slug}.
func (h *ChartsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.service.Delete(r.Context(), slug); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"slug":   slug,
	})
}

// Data handles GET /api/charts/{slug}/data with the same window and
// format parameters as the series endpoint.
func (h *ChartsHandler) Data(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	c, frame, err := h.service.Render(r.Context(), chi.URLParam(r, "slug"), start, end)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+c.Slug+`.csv"`)
		if err := exporter.WriteCSV(w, frame); err != nil {
			h.logger.ErrorContext(r.Context(), "write csv", slog.String("error", err.Error()))
		}
	case "xlsx":
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+c.Slug+`.xlsx"`)
		if err := exporter.WriteXLSX(w, frame, c.Title); err != nil {
			h.logger.ErrorContext(r.Context(), "write xlsx", slog.String("error", err.Error()))
		}
	default:
		resp := frameResponse(frame)
		resp["chart"] = c
		render.JSON(w, r, resp)
	}
}
