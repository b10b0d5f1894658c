package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/internal/config"
	"marketlens/internal/infrastructure"
)

func testApplication(t *testing.T) *Application {
	t.Helper()
	infrastructure.ResetLoggerForTesting()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "test.db")
	cfg.Insights.Dir = filepath.Join(dir, "insights")
	cfg.Logging.Output = "stdout"
	cfg.Refresh.Enabled = false

	a, err := NewApplicationWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Hub.Stop()
		a.Store.Close()
		infrastructure.ResetLoggerForTesting()
	})
	return a
}

func TestApplicationWiring(t *testing.T) {
	a := testApplication(t)

	require.NotNil(t, a.Router)
	require.NotNil(t, a.Server)
	assert.NotNil(t, a.SeriesService)
	assert.NotNil(t, a.ChartService)
	assert.NotNil(t, a.InsightService)
	assert.NotNil(t, a.HealthService)
	assert.NotNil(t, a.Refresher)
}

func TestHealthEndpoint(t *testing.T) {
	a := testApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestVersionEndpoint(t *testing.T) {
	a := testApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), infrastructure.ServiceName)
}

func TestMetricsEndpoint(t *testing.T) {
	a := testApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	a := testApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestUnknownRouteIsProblemJSON(t *testing.T) {
	a := testApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestDashboardRouteServed(t *testing.T) {
	a := testApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/risk/html", nil)
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Risk Dashboard")
}
