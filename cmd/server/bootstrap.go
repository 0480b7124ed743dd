package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/veloigp/internal/api"
	"github.com/charlesng35/veloigp/internal/app"
	"github.com/charlesng35/veloigp/internal/app/maintenance"
	"github.com/charlesng35/veloigp/internal/cache"
	"github.com/charlesng35/veloigp/internal/database"
	"github.com/charlesng35/veloigp/internal/export"
	"github.com/charlesng35/veloigp/internal/middleware"
	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/mockdata"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/monitoring/checks"
	"github.com/charlesng35/veloigp/internal/pbx"
	"github.com/charlesng35/veloigp/internal/realtime"
	"github.com/charlesng35/veloigp/internal/services"
	"github.com/charlesng35/veloigp/internal/sheets"
	"github.com/charlesng35/veloigp/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Monitoring  *monitoring.Module
	Hub         *realtime.Hub
	PBX         *pbx.Client
	Data        *services.DataService
	Refresh     *services.RefreshService
	Backups     *services.BackupService
	RateLimiter *middleware.RateLimiter
	Cleaner     *maintenance.Cleaner
	Router      *gin.Engine
}

// bootstrapRuntime initialises the database, services, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{
		Namespace:    cfg.Monitoring.Namespace,
		ProbeTimeout: cfg.Monitoring.Health.ProbeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	stack.Hub = realtime.NewHub(cfg.Server.AllowedOrigins...)

	generator, err := mockdata.New(cfg.Data.Seed)
	if err != nil {
		return nil, fmt.Errorf("initialise data generator: %w", err)
	}

	stack.PBX, err = pbx.NewClient(cfg.PBX.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise pbx client: %w", err)
	}
	if !stack.PBX.Configured() {
		log.Warn("pbx api token missing, reports will use generated data")
	}

	stack.Data, err = services.NewDataService(generator, stack.PBX, cfg.Data.ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise data service: %w", err)
	}

	stack.Refresh = services.NewRefreshService(stack.Data, cfg.Loading.RefreshConfig(), stack.Hub)

	stack.Backups, err = services.NewBackupService(stack.DB, cfg.Backup.ServiceConfig(),
		services.WithBackupBroadcaster(stack.Hub),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise backup service: %w", err)
	}

	store := cache.NewDatabaseStore(stack.DB)
	preferences, err := services.NewPreferencesService(store)
	if err != nil {
		return nil, fmt.Errorf("initialise preferences service: %w", err)
	}

	if cfg.Server.RateLimit.Requests > 0 && cfg.Server.RateLimit.Window > 0 {
		stack.RateLimiter = middleware.NewRateLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
	}

	health := stack.Monitoring.Health()
	health.RegisterLiveness(checks.Realtime(stack.Hub))
	health.RegisterReadiness(checks.Database(stack.DB, cfg.Monitoring.Health.ProbeTimeout,
		models.BackupTableName, models.CacheEntryTableName,
	))
	health.RegisterReadiness(checks.PBX(stack.PBX))

	if cfg.Maintenance.Enabled {
		opts := []maintenance.Option{
			maintenance.WithBackups(stack.Backups),
			maintenance.WithStore(store),
			maintenance.WithRetentionSchedule(cfg.Maintenance.RetentionSchedule),
			maintenance.WithPurgeSchedule(cfg.Maintenance.PurgeSchedule),
			maintenance.WithSweepSchedule(cfg.Maintenance.SweepSchedule),
			maintenance.WithBackupSchedule(cfg.Backup.Schedule),
		}
		if stack.RateLimiter != nil {
			opts = append(opts, maintenance.WithRateLimiter(stack.RateLimiter))
		}
		stack.Cleaner = maintenance.NewCleaner(opts...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
		health.RegisterLiveness(checks.Maintenance(cfg.Monitoring.Health.MaintenanceMaxAge,
			checks.WithJobIntervals(stack.Cleaner.Intervals()),
		))
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:      cfg,
		Data:        stack.Data,
		Refresh:     stack.Refresh,
		Backups:     stack.Backups,
		Preferences: preferences,
		Exporter:    export.New(),
		Sheets:      sheets.NewClient(cfg.Sheets.ClientConfig(), nil),
		Hub:         stack.Hub,
		Monitoring:  stack.Monitoring,
		RateLimiter: stack.RateLimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background work and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		// Wait for running jobs, bounded by ctx.
		if done := s.Cleaner.Stop().Done(); done != nil {
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Refresh != nil {
		s.Refresh.Close()
	}
	if s.Backups != nil {
		s.Backups.Close()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}

	if s.Monitoring != nil && monitoring.CurrentModule() == s.Monitoring {
		monitoring.SetModule(nil)
	}
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db.WithContext(ctx)); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(dbCfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
