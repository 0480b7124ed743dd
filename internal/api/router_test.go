package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/veloigp/internal/app"
	"github.com/charlesng35/veloigp/internal/cache"
	"github.com/charlesng35/veloigp/internal/database/testutil"
	"github.com/charlesng35/veloigp/internal/middleware"
	"github.com/charlesng35/veloigp/internal/mockdata"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/realtime"
	"github.com/charlesng35/veloigp/internal/services"
)

func newDependencies(t *testing.T) Dependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)

	generator, err := mockdata.New(1)
	require.NoError(t, err)
	data, err := services.NewDataService(generator, nil, cfg.Data.ServiceConfig())
	require.NoError(t, err)

	refresh := services.NewRefreshService(data, cfg.Loading.RefreshConfig(), nil)
	t.Cleanup(refresh.Close)

	backups, err := services.NewBackupService(db, cfg.Backup.ServiceConfig())
	require.NoError(t, err)
	t.Cleanup(backups.Close)

	preferences, err := services.NewPreferencesService(cache.NewDatabaseStore(db))
	require.NoError(t, err)

	return Dependencies{
		Config:      cfg,
		Data:        data,
		Refresh:     refresh,
		Backups:     backups,
		Preferences: preferences,
		Hub:         realtime.NewHub(),
	}
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	require.EqualError(t, err, "config must be provided")

	deps := newDependencies(t)
	deps.Data = nil
	_, err = NewRouter(deps)
	require.Error(t, err)

	deps = newDependencies(t)
	deps.Backups = nil
	_, err = NewRouter(deps)
	require.Error(t, err)
}

func TestRouterRegistersRoutes(t *testing.T) {
	router, err := NewRouter(newDependencies(t))
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, route := range router.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /api/dashboard/operators",
		"GET /api/dashboard/calls",
		"GET /api/dashboard/metrics",
		"GET /api/dashboard/queues",
		"GET /api/reports/pbx",
		"POST /api/cache/clear",
		"GET /api/reports/refresh",
		"POST /api/reports/refresh/retry",
		"GET /api/backups",
		"POST /api/backups",
		"GET /api/backups/:id",
		"POST /api/export",
		"PUT /api/preferences/:key",
		"GET /api/sheets/probe",
		"GET /ws",
		"GET /ws/:stream",
	} {
		require.True(t, registered[want], "missing route %s", want)
	}
}

func TestRouterNotFoundAndSecurityHeaders(t *testing.T) {
	router, err := NewRouter(newDependencies(t))
	require.NoError(t, err)

	rec := serve(router, http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"NOT_FOUND"`)
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterWithoutMonitoring(t *testing.T) {
	router, err := NewRouter(newDependencies(t))
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics").Code)
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/monitoring/summary").Code)
}

func TestRouterServesMetricsWhenEnabled(t *testing.T) {
	module, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(module)
	t.Cleanup(func() { monitoring.SetModule(nil) })

	deps := newDependencies(t)
	deps.Monitoring = module
	deps.Config.Monitoring.Prometheus.Endpoint = "/internal/metrics"

	router, err := NewRouter(deps)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/dashboard/metrics").Code)

	rec := serve(router, http.MethodGet, "/internal/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "veloigp_api_latency_seconds")

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/ready").Code)
}

func TestRouterAppliesRateLimitToAPI(t *testing.T) {
	deps := newDependencies(t)
	deps.RateLimiter = middleware.NewRateLimiter(1, time.Minute)

	router, err := NewRouter(deps)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/dashboard/queues").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/api/dashboard/queues").Code)
}
