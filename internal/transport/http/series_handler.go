// Package http holds the chi HTTP handlers for the marketlens API.
package http

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "marketlens/internal/errors"
	"marketlens/internal/exporter"
	"marketlens/internal/middleware"
	"marketlens/internal/services"
	"marketlens/internal/timeseries"
	"marketlens/internal/validation"
)

const dateLayout = "2006-01-02"

// SeriesHandler serves the catalog and expression evaluation endpoints.
type SeriesHandler struct {
	service      *services.SeriesService
	validator    *validation.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSeriesHandler creates the handler.
func NewSeriesHandler(service *services.SeriesService, validator *validation.Validator,
	logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SeriesHandler {
	return &SeriesHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "series_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the series routes.
func (h *SeriesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetSeries)
	r.With(render.SetContentType(render.ContentTypeJSON)).Post("/eval", h.Eval)
	return r
}

// parseWindow reads optional start and end query parameters.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	var start, end time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return start, end, apierrors.ErrValidation("start", "must be a YYYY-MM-DD date")
		}
		start = d
	}
	if v := r.URL.Query().Get("end"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return start, end, apierrors.ErrValidation("end", "must be a YYYY-MM-DD date")
		}
		end = d
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, apierrors.ErrValidation("end", "must not precede start")
	}
	return start, end, nil
}

// GetSeries handles GET /api/series?series=...&series=...&format=json|csv|xlsx.
// Each series parameter holds one expression; results share one calendar.
func (h *SeriesHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	exprs := r.URL.Query()["series"]
	if len(exprs) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("series", "at least one series parameter is required"))
		return
	}

	start, end, err := parseWindow(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	frame, err := h.service.Evaluate(r.Context(), exprs, start, end)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "json":
		render.JSON(w, r, frameResponse(frame))
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="series.csv"`)
		if err := exporter.WriteCSV(w, frame); err != nil {
			h.logger.ErrorContext(r.Context(), "write csv",
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.GetRequestID(r.Context())))
		}
	case "xlsx":
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="series.xlsx"`)
		if err := exporter.WriteXLSX(w, frame, "Series"); err != nil {
			h.logger.ErrorContext(r.Context(), "write xlsx",
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.GetRequestID(r.Context())))
		}
	default:
		h.errorHandler.HandleError(w, r,
			apierrors.ErrValidation("format", fmt.Sprintf("unsupported format %q", format)))
	}
}

// EvalRequest is the body of POST /api/series/eval.
type EvalRequest struct {
	Expressions []string `json:"expressions" validate:"required,min=1,max=32,dive,required"`
	Start       string   `json:"start,omitempty" validate:"omitempty,date"`
	End         string   `json:"end,omitempty" validate:"omitempty,date"`
}

// Eval handles POST /api/series/eval.
func (h *SeriesHandler) Eval(w http.ResponseWriter, r *http.Request) {
	var req EvalRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r,
			apierrors.New(http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var start, end time.Time
	if req.Start != "" {
		start, _ = time.ParseInLocation(dateLayout, req.Start, time.UTC)
	}
	if req.End != "" {
		end, _ = time.ParseInLocation(dateLayout, req.End, time.UTC)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("end", "must not precede start"))
		return
	}

	frame, err := h.service.Evaluate(r.Context(), req.Expressions, start, end)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, frameResponse(frame))
}

// CatalogHandler serves GET /api/catalog.
type CatalogHandler struct {
	service      *services.SeriesService
	errorHandler *apierrors.ErrorHandler
}

// NewCatalogHandler creates the handler.
func NewCatalogHandler(service *services.SeriesService, errorHandler *apierrors.ErrorHandler) *CatalogHandler {
	return &CatalogHandler{service: service, errorHandler: errorHandler}
}

// Catalog handles GET /api/catalog.
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	metas, err := h.service.Catalog(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   metas,
		"count":  len(metas),
	})
}

// frameResponse converts a frame to the JSON wire shape. NaN values
// become nulls, which encoding/json cannot represent as float64.
func frameResponse(f timeseries.Frame) map[string]interface{} {
	cal := f.Calendar()
	dates := make([]string, len(cal))
	for i, d := range cal {
		dates[i] = d.Format(dateLayout)
	}

	columns := make([]map[string]interface{}, 0, f.Width())
	for _, name := range f.Names() {
		col, _ := f.Column(name)
		vals := make([]interface{}, col.Len())
		for i, v := range col.Values() {
			if math.IsNaN(v) {
				vals[i] = nil
			} else {
				vals[i] = v
			}
		}
		columns = append(columns, map[string]interface{}{
			"name":   name,
			"values": vals,
		})
	}

	return map[string]interface{}{
		"status":  "success",
		"dates":   dates,
		"columns": columns,
	}
}
