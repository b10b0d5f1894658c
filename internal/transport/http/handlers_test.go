package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	apierrors "marketlens/internal/errors"
	"marketlens/internal/middleware"
	"marketlens/internal/services"
	"marketlens/internal/store"
	"marketlens/internal/timeseries"
	"marketlens/internal/validation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

type testEnv struct {
	store  *store.Store
	series *services.SeriesService
	charts *services.ChartService
	router chi.Router
}

// newTestEnv builds a router with the series, catalog and chart routes
// over a seeded store. adminHash of "" leaves writes open.
func newTestEnv(t *testing.T, adminHash string) *testEnv {
	t.Helper()
	logger := discardLogger()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	id, err := st.UpsertSeries(ctx, store.SeriesMeta{
		Code: "SPX", Field: "PX_LAST", Name: "S&P 500", Frequency: "D",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	points := []timeseries.Point{
		{Date: day("2024-01-02"), Value: 4700},
		{Date: day("2024-01-03"), Value: 4710},
		{Date: day("2024-01-04"), Value: 4690},
	}
	if err := st.ReplaceObservations(ctx, id, points); err != nil {
		t.Fatalf("observations: %v", err)
	}

	seriesSvc := services.NewSeriesService(st, nil, logger)
	chartSvc := services.NewChartService(st, seriesSvc, logger)
	eh := apierrors.NewErrorHandler(logger, false)
	val := validation.New()
	admin := middleware.AdminToken(adminHash, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		sh := NewSeriesHandler(seriesSvc, val, logger, eh)
		r.Mount("/series", sh.Routes())
		r.Get("/catalog", NewCatalogHandler(seriesSvc, eh).Catalog)
		ch := NewChartsHandler(chartSvc, val, admin, logger, eh)
		r.Mount("/charts", ch.Routes())
	})
	r.Get("/risk/html", NewDashboardHandler(chartSvc, logger, eh).Dashboard)

	return &testEnv{store: st, series: seriesSvc, charts: chartSvc, router: r}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetSeriesJSON(t *testing.T) {
	env := newTestEnv(t, "")

	w := doJSON(t, env.router, http.MethodGet, "/api/series?series=SPX&series=diff(SPX)", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status  string   `json:"status"`
		Dates   []string `json:"dates"`
		Columns []struct {
			Name   string        `json:"name"`
			Values []interface{} `json:"values"`
		} `json:"columns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Dates) != 3 || len(resp.Columns) != 2 {
		t.Fatalf("dates = %d, columns = %d", len(resp.Dates), len(resp.Columns))
	}
	if resp.Columns[1].Name != "diff(SPX)" {
		t.Errorf("column name = %q", resp.Columns[1].Name)
	}
	if resp.Columns[1].Values[0] != nil {
		t.Errorf("leading diff = %v, want null", resp.Columns[1].Values[0])
	}
}

func TestGetSeriesCSV(t *testing.T) {
	env := newTestEnv(t, "")

	w := doJSON(t, env.router, http.MethodGet, "/api/series?series=SPX&format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if lines[0] != "Date,SPX" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2024-01-02,4700" {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestGetSeriesMissingParam(t *testing.T) {
	env := newTestEnv(t, "")

	w := doJSON(t, env.router, http.MethodGet, "/api/series", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestEvalRejectsBadExpression(t *testing.T) {
	env := newTestEnv(t, "")

	w := doJSON(t, env.router, http.MethodPost, "/api/series/eval",
		map[string]any{"expressions": []string{"roll(SPX"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}

	var problem map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("unmarshal problem: %v", err)
	}
	if problem["type"] != apierrors.TypeExpressionInvalid {
		t.Errorf("problem type = %v", problem["type"])
	}
}

func TestEvalUnknownSeriesIs404(t *testing.T) {
	env := newTestEnv(t, "")

	w := doJSON(t, env.router, http.MethodPost, "/api/series/eval",
		map[string]any{"expressions": []string{"NOPE"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", w.Code, w.Body.String())
	}
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t, "")

	w := doJSON(t, env.router, http.MethodGet, "/api/catalog", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
		Data  []struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Data[0].Code != "SPX" {
		t.Errorf("catalog = %+v", resp)
	}
}

func TestChartLifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	body := map[string]any{
		"slug":        "spx-trend",
		"title":       "SPX trend",
		"group":       "equities",
		"expressions": []string{"SPX", "roll(SPX,2)"},
	}
	w := doJSON(t, env.router, http.MethodPost, "/api/charts", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, env.router, http.MethodGet, "/api/charts/spx-trend/data", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("data status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(resp.Columns))
	}

	w = doJSON(t, env.router, http.MethodDelete, "/api/charts/spx-trend", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = doJSON(t, env.router, http.MethodGet, "/api/charts/spx-trend", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", w.Code)
	}
}

func TestChartWriteRequiresAdminToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	env := newTestEnv(t, string(hash))

	body := map[string]any{
		"slug": "locked", "title": "Locked", "group": "test",
		"expressions": []string{"SPX"},
	}

	w := doJSON(t, env.router, http.MethodPost, "/api/charts", body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", w.Code)
	}

	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/charts", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", "sesame")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status with token = %d, body = %s", rec.Code, rec.Body.String())
	}

	// reads stay open
	w = doJSON(t, env.router, http.MethodGet, "/api/charts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
}

func TestDashboardRendersCharts(t *testing.T) {
	env := newTestEnv(t, "")

	if err := env.charts.Save(context.Background(), store.Chart{
		Slug: "spx", Title: "S&P 500", Group: "Equities",
		Expressions: []string{"SPX"},
	}); err != nil {
		t.Fatalf("save chart: %v", err)
	}

	w := doJSON(t, env.router, http.MethodGet, "/risk/html?start=2024-01-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	html := w.Body.String()
	if !strings.Contains(html, "cdn.plot.ly") {
		t.Error("page does not load plotly")
	}
	if !strings.Contains(html, `id="chart-spx"`) {
		t.Error("chart container missing")
	}
	if !strings.Contains(html, "Equities") {
		t.Error("group heading missing")
	}
}
