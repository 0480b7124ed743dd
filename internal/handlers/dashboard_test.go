package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/veloigp/internal/handlers/testutil"
	"github.com/charlesng35/veloigp/internal/models"
)

func TestDashboardEntitiesAreSimulatedFallback(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(http.MethodGet, "/api/dashboard/operators", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := testutil.DecodeResponse(t, rec)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	require.Equal(t, "fallback", resp.Meta.Source)
	require.Equal(t, "simulated", resp.Meta.Reason)
	require.NotNil(t, resp.Meta.GeneratedAt)

	var operators []models.Operator
	testutil.DecodeInto(t, resp.Data, &operators)
	require.NotEmpty(t, operators)
	require.Equal(t, len(operators), resp.Meta.Total)

	for _, path := range []string{"/api/dashboard/calls", "/api/dashboard/queues", "/api/dashboard/metrics"} {
		rec := env.Request(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		resp := testutil.DecodeResponse(t, rec)
		require.Equal(t, "fallback", resp.Meta.Source, path)
	}
}

func TestDashboardOperatorsAreCachedUntilCleared(t *testing.T) {
	env := testutil.NewEnv(t)

	first := testutil.DecodeResponse(t, env.Request(http.MethodGet, "/api/dashboard/operators", nil))
	second := testutil.DecodeResponse(t, env.Request(http.MethodGet, "/api/dashboard/operators", nil))
	require.JSONEq(t, string(first.Data), string(second.Data))

	stats := testutil.DecodeResponse(t, env.Request(http.MethodGet, "/api/cache/stats", nil))
	var counters struct {
		Entries int    `json:"entries"`
		Hits    uint64 `json:"hits"`
		Misses  uint64 `json:"misses"`
	}
	testutil.DecodeInto(t, stats.Data, &counters)
	require.Equal(t, 1, counters.Entries)
	require.EqualValues(t, 1, counters.Hits)
	require.EqualValues(t, 1, counters.Misses)

	rec := env.Request(http.MethodPost, "/api/cache/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared struct {
		Cleared int `json:"cleared"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &cleared)
	require.Equal(t, 1, cleared.Cleared)

	entries, _, _ := env.Data.CacheStats()
	require.Zero(t, entries)
}

func TestReportValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "missing dates", path: "/api/reports/pbx"},
		{name: "malformed start", path: "/api/reports/pbx?start=2024-13-01&end=2024-01-07"},
		{name: "end before start", path: "/api/reports/pbx?start=2024-02-01&end=2024-01-07"},
		{name: "range too long", path: "/api/reports/pbx?start=2022-01-01&end=2024-01-01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.Request(http.MethodGet, tc.path, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := testutil.DecodeResponse(t, rec)
			require.False(t, resp.Success)
			require.Equal(t, "BAD_REQUEST", resp.Error.Code)
		})
	}
}

func TestReportWithoutPBXFallsBackForConfiguration(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(http.MethodGet, "/api/reports/pbx?start=2024-01-01&end=2024-01-07", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := testutil.DecodeResponse(t, rec)
	require.Equal(t, "fallback", resp.Meta.Source)
	require.Equal(t, "configuration", resp.Meta.Reason)
	require.NotEmpty(t, resp.Data)
}

func TestReportServedLiveAndCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.Contains(r.URL.Path, "/2024-01-01/2024-01-07/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queues":[{"name":"ventas","answered":12}]}`))
	}))
	t.Cleanup(server.Close)

	env := testutil.NewEnv(t, testutil.WithPBX(server.URL))

	for range 2 {
		rec := env.Request(http.MethodGet, "/api/reports/pbx?start=2024-01-01&end=2024-01-07", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := testutil.DecodeResponse(t, rec)
		require.Equal(t, "live", resp.Meta.Source)
		require.Empty(t, resp.Meta.Reason)
		require.JSONEq(t, `{"queues":[{"name":"ventas","answered":12}]}`, string(resp.Data))
	}
	require.EqualValues(t, 1, hits.Load())
}

func TestReportUpstreamFailureFallsBackForNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	env := testutil.NewEnv(t, testutil.WithPBX(server.URL))

	rec := env.Request(http.MethodGet, "/api/reports/pbx?start=2024-01-01&end=2024-01-07", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := testutil.DecodeResponse(t, rec)
	require.Equal(t, "fallback", resp.Meta.Source)
	require.Equal(t, "network", resp.Meta.Reason)
}
