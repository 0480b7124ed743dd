package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/app"
	"github.com/charlesng35/veloigp/internal/export"
	"github.com/charlesng35/veloigp/internal/handlers"
	"github.com/charlesng35/veloigp/internal/middleware"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/realtime"
	"github.com/charlesng35/veloigp/internal/services"
	"github.com/charlesng35/veloigp/internal/sheets"
)

// Dependencies carries everything the HTTP layer serves.
// Monitoring, Sheets, Hub and RateLimiter are optional.
type Dependencies struct {
	Config      *app.Config
	Data        *services.DataService
	Refresh     *services.RefreshService
	Backups     *services.BackupService
	Preferences *services.PreferencesService
	Exporter    *export.Exporter
	Sheets      *sheets.Client
	Hub         *realtime.Hub
	Monitoring  *monitoring.Module
	RateLimiter *middleware.RateLimiter
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}

	dashboard, err := handlers.NewDashboardHandler(deps.Data)
	if err != nil {
		return nil, err
	}
	refresh, err := handlers.NewRefreshHandler(deps.Refresh)
	if err != nil {
		return nil, err
	}
	backups, err := handlers.NewBackupHandler(deps.Backups)
	if err != nil {
		return nil, err
	}
	preferences, err := handlers.NewPreferencesHandler(deps.Preferences)
	if err != nil {
		return nil, err
	}
	exports, err := handlers.NewExportHandler(deps.Data, deps.Exporter)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(deps.Config.Server.AllowedOrigins...))

	registerHealthRoutes(r, deps.Config, deps.Monitoring)
	registerMetricsRoute(r, deps.Config, deps.Monitoring)
	registerRealtimeRoutes(r, handlers.NewRealtimeHandler(deps.Hub))

	api := r.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Middleware())
	}

	registerDashboardRoutes(api, dashboard)
	registerRefreshRoutes(api, refresh)
	registerBackupRoutes(api, backups)
	registerExportRoutes(api, exports)
	registerPreferenceRoutes(api, preferences)
	registerSheetsRoutes(api, handlers.NewSheetsHandler(deps.Sheets))
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, deps.Config.Monitoring.Prometheus.Endpoint))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
