package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"marketlens/internal/expr"
	"marketlens/internal/middleware"
	"marketlens/internal/store"
	"marketlens/internal/timeseries"
)

// ErrorHandler converts errors into RFC 7807 responses and logs them.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. includeStack should only be
// true in development.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetRequestID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	writeProblem(w, problem)
}

// ErrorToProblem maps an error to a problem document. Domain sentinel
// errors get specific types; everything else is an internal error.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var synErr *expr.SyntaxError
	if errors.As(err, &synErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeExpressionInvalid,
			"Invalid Expression",
			synErr.Msg,
			r.URL.Path,
		).WithExtension("position", synErr.Pos)
	}

	var evalErr *expr.EvalError
	if errors.As(err, &evalErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeExpressionInvalid,
			"Invalid Expression",
			evalErr.Msg,
			r.URL.Path,
		).WithExtension("position", evalErr.Pos)
	}

	switch {
	case errors.Is(err, store.ErrSeriesNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeSeriesNotFound,
			"Series Not Found",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, store.ErrChartNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeChartNotFound,
			"Chart Not Found",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, store.ErrInsightNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeInsightNotFound,
			"Insight Not Found",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, timeseries.ErrNoFXRoute):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeFXRouteNotFound,
			"No FX Route",
			err.Error(),
			r.URL.Path,
		)

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			r.URL.Path,
		)
	}
}

func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "UNAUTHORIZED":
		problemType = TypeUnauthorized
	case "FORBIDDEN":
		problemType = TypeForbidden
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "EXPRESSION_INVALID":
		problemType = TypeExpressionInvalid
	case "INSIGHT_REJECTED":
		problemType = TypeInsightRejected
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic recovers from panics and responds with a problem document.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	writeProblem(w, problem)
}

// NotFound is the router's fallback 404 handler.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetRequestID(r.Context()))

	writeProblem(w, problem)
}

// MethodNotAllowed is the router's fallback 405 handler.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetRequestID(r.Context()))

	writeProblem(w, problem)
}

func getStackTrace() string {
	buf := make([]byte, 8*1024)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// writeProblem serializes the document with the problem+json media type.
// go-chi/render would overwrite the content type with application/json,
// so the write bypasses it.
func writeProblem(w http.ResponseWriter, p *ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}
