package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/veloigp/internal/api"
	"github.com/charlesng35/veloigp/internal/app"
	"github.com/charlesng35/veloigp/internal/cache"
	sharedtestutil "github.com/charlesng35/veloigp/internal/database/testutil"
	"github.com/charlesng35/veloigp/internal/export"
	"github.com/charlesng35/veloigp/internal/mockdata"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/pbx"
	"github.com/charlesng35/veloigp/internal/realtime"
	"github.com/charlesng35/veloigp/internal/services"
	"github.com/charlesng35/veloigp/internal/sheets"
	"github.com/charlesng35/veloigp/pkg/response"
)

// FixedNow is the clock used by exports in the test environment.
var FixedNow = time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	Config  *app.Config
	Data    *services.DataService
	Refresh *services.RefreshService
	Backups *services.BackupService
	Hub     *realtime.Hub
	Module  *monitoring.Module
}

// Option customises the environment before the router is built.
type Option func(*envOptions)

type envOptions struct {
	pbxURL      string
	sheetsURL   string
	backupFails float64
}

// WithPBX points the PBX client at url, typically an httptest server.
func WithPBX(url string) Option {
	return func(o *envOptions) { o.pbxURL = url }
}

// WithSheets configures the spreadsheet probe against url.
func WithSheets(url string) Option {
	return func(o *envOptions) { o.sheetsURL = url }
}

// WithBackupFailureRate overrides the simulated backup failure rate (0 by default).
func WithBackupFailureRate(rate float64) Option {
	return func(o *envOptions) { o.backupFails = rate }
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
// It installs a process-wide monitoring module, so tests using it must not run in parallel.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.PBX.BaseURL = o.pbxURL
	cfg.PBX.Token = "test-token"
	cfg.PBX.Timeout = 2 * time.Second
	cfg.Sheets.BaseURL = o.sheetsURL
	if o.sheetsURL != "" {
		cfg.Sheets.SpreadsheetID = "sheet-test"
		cfg.Sheets.APIKey = "key-test"
	}

	module, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(module)
	t.Cleanup(func() { monitoring.SetModule(nil) })

	hub := realtime.NewHub()

	generator, err := mockdata.New(42)
	require.NoError(t, err)

	pbxClient, err := pbx.NewClient(cfg.PBX.ClientConfig())
	require.NoError(t, err)

	data, err := services.NewDataService(generator, pbxClient, cfg.Data.ServiceConfig())
	require.NoError(t, err)

	refresh := services.NewRefreshService(data, cfg.Loading.RefreshConfig(), hub)
	t.Cleanup(refresh.Close)

	backupCfg := cfg.Backup.ServiceConfig()
	backupCfg.FailureRate = o.backupFails
	backupCfg.Seed = 7
	backups, err := services.NewBackupService(db, backupCfg,
		services.WithBackupSleep(noSleep),
		services.WithBackupBroadcaster(hub),
	)
	require.NoError(t, err)
	t.Cleanup(backups.Close)

	preferences, err := services.NewPreferencesService(cache.NewDatabaseStore(db))
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Config:      cfg,
		Data:        data,
		Refresh:     refresh,
		Backups:     backups,
		Preferences: preferences,
		Exporter:    export.New(export.WithClock(func() time.Time { return FixedNow })),
		Sheets:      sheets.NewClient(cfg.Sheets.ClientConfig(), nil),
		Hub:         hub,
		Monitoring:  module,
	})
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		Config:  cfg,
		Data:    data,
		Refresh: refresh,
		Backups: backups,
		Hub:     hub,
		Module:  module,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, JSON encoding body when present.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	switch v := body.(type) {
	case nil:
		buf = bytes.NewBuffer(nil)
	case []byte:
		buf = bytes.NewBuffer(v)
	default:
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
