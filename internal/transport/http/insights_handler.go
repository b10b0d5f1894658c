package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "marketlens/internal/errors"
	"marketlens/internal/services"
	"marketlens/internal/validation"
)

// InsightsHandler serves research document upload and retrieval.
type InsightsHandler struct {
	service        *services.InsightService
	validator      *validation.Validator
	admin          func(http.Handler) http.Handler
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewInsightsHandler creates the handler. admin guards upload and delete.
func NewInsightsHandler(service *services.InsightService, validator *validation.Validator,
	admin func(http.Handler) http.Handler, maxUploadBytes int64, logger *slog.Logger,
	errorHandler *apierrors.ErrorHandler) *InsightsHandler {
	return &InsightsHandler{
		service:        service,
		validator:      validator,
		admin:          admin,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "insights_handler")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the insight routes.
func (h *InsightsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.With(h.admin).Post("/", h.Upload)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/file", h.File)
		r.With(h.admin).Delete("/", h.Delete)
	})
	return r
}

// Upload handles POST /api/insights as a multipart form with an issuer,
// name, published_at and a single PDF file part.
func (h *InsightsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r,
			apierrors.New(http.StatusBadRequest, "INVALID_MULTIPART", "Request is not a valid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "a PDF file part is required"))
		return
	}
	defer file.Close()

	req := services.UploadRequest{
		Issuer:      r.FormValue("issuer"),
		Name:        r.FormValue("name"),
		PublishedAt: r.FormValue("published_at"),
		Filename:    filepath.Base(header.Filename),
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	in, err := h.service.Upload(r.Context(), req, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusUnprocessableEntity, "INSIGHT_REJECTED", "Document was rejected", err.Error()))
		return
	}

	h.logger.InfoContext(r.Context(), "insight uploaded",
		slog.String("id", in.ID),
		slog.String("issuer", in.Issuer),
		slog.Int("pages", in.Pages))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   in,
	})
}

// List handles GET /api/insights?issuer=....
func (h *InsightsHandler) List(w http.ResponseWriter, r *http.Request) {
	insights, err := h.service.List(r.Context(), r.URL.Query().Get("issuer"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   insights,
		"count":  len(insights),
	})
}

// Get handles GET /api/insights/{id}.
func (h *InsightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	in, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   in,
	})
}

// File handles GET /api/insights/{id}/file, streaming the stored PDF.
func (h *InsightsHandler) File(w http.ResponseWriter, r *http.Request) {
	rc, in, err := h.service.File(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+in.Filename+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.ErrorContext(r.Context(), "stream insight file",
			slog.String("id", in.ID),
			slog.String("error", err.Error()))
	}
}

// Delete handles DELETE /api/insights/{id}.
func (h *InsightsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"id":     id,
	})
}
