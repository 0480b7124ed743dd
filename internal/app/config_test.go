package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://dashboard.veloigp.example"}, cfg.Server.AllowedOrigins)
	require.Equal(t, 30, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)

	require.Equal(t, 2*time.Minute, cfg.Data.CacheTTL)
	require.EqualValues(t, 42, cfg.Data.Seed)
	require.Equal(t, 8, cfg.Data.OperatorCount)
	require.Equal(t, 50, cfg.Data.CallCount)

	require.Equal(t, "https://pbx.example.com/reporting", cfg.PBX.BaseURL)
	require.Equal(t, 20*time.Second, cfg.PBX.Timeout)
	require.EqualValues(t, 3, cfg.PBX.Breaker.Failures)
	require.Equal(t, time.Minute, cfg.PBX.Breaker.Cooldown)

	require.Equal(t, "sheet-123", cfg.Sheets.SpreadsheetID)
	require.Equal(t, "A1:Z1000", cfg.Sheets.Range)

	require.Equal(t, 30*time.Second, cfg.Loading.Timeout)
	require.Equal(t, 5, cfg.Loading.MaxRetries)

	require.Equal(t, time.Second, cfg.Backup.MinDelay)
	require.Equal(t, 3*time.Second, cfg.Backup.MaxDelay)
	require.InDelta(t, 0.25, cfg.Backup.FailureRate, 1e-9)
	require.Equal(t, []string{"operators", "calls"}, cfg.Backup.Collections)
	require.Equal(t, "0 3 * * *", cfg.Backup.Schedule)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.RetentionSchedule)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 5*time.Minute, cfg.Data.CacheTTL)
	require.Equal(t, 15*time.Second, cfg.PBX.Timeout)
	require.Equal(t, 15*time.Second, cfg.Loading.Timeout)
	require.Equal(t, 3, cfg.Loading.MaxRetries)
	require.Equal(t, 10, cfg.Backup.Retain)
	require.InDelta(t, 0.1, cfg.Backup.FailureRate, 1e-9)
	require.Empty(t, cfg.Backup.Schedule)
	require.True(t, cfg.Maintenance.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("VELOIGP_PBX_TOKEN", "from-env")
	t.Setenv("VELOIGP_LOADING_MAX_RETRIES", "7")
	t.Setenv("VELOIGP_DATA_CACHE_TTL", "45s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.PBX.Token)
	require.Equal(t, 7, cfg.Loading.MaxRetries)
	require.Equal(t, 45*time.Second, cfg.Data.CacheTTL)
}

func TestIntegrationConfigs(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	db := cfg.Database.ConnectionConfig()
	require.Equal(t, "postgres", db.Driver)
	require.Equal(t, "db.example.com", db.Host)
	require.Equal(t, 5433, db.Port)
	require.Equal(t, "analytics", db.Name)
	require.Equal(t, "velo", db.User)

	pbxCfg := cfg.PBX.ClientConfig()
	require.Equal(t, "pbx-token", pbxCfg.Token)
	require.EqualValues(t, 3, pbxCfg.BreakerFailures)

	sheetsCfg := cfg.Sheets.ClientConfig()
	require.True(t, sheetsCfg.Configured())

	backup := cfg.Backup.ServiceConfig()
	require.Equal(t, 5, backup.Retain)
	require.Equal(t, []string{"operators", "calls"}, backup.Collections)

	refresh := cfg.Loading.RefreshConfig()
	require.Equal(t, 30*time.Second, refresh.Timeout)
	require.Equal(t, 5, refresh.MaxRetries)

	require.Equal(t, 8, cfg.Data.ServiceConfig().OperatorCount)
}

func TestSQLiteConnectionConfigIgnoresHostSections(t *testing.T) {
	cfg := DatabaseConfig{Driver: "SQLite", Path: " ./data/x.sqlite ", Postgres: DBAuthConfig{Host: "ignored"}}
	db := cfg.ConnectionConfig()
	require.Equal(t, "sqlite", db.Driver)
	require.Equal(t, "./data/x.sqlite", db.Path)
	require.Empty(t, db.Host)
}
