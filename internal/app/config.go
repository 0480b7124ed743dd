package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the VeloIGP backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Data        DataConfig        `mapstructure:"data"`
	PBX         PBXConfig         `mapstructure:"pbx"`
	Sheets      SheetsConfig      `mapstructure:"sheets"`
	Loading     LoadingConfig     `mapstructure:"loading"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client and route. Zero disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DataConfig tunes the dashboard data facade and the simulated datasets.
type DataConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	Seed          uint64        `mapstructure:"seed"`
	OperatorCount int           `mapstructure:"operator_count"`
	CallCount     int           `mapstructure:"call_count"`
}

// PBXConfig points at the vendor reporting API.
type PBXConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig trips the PBX circuit after consecutive failures.
type BreakerConfig struct {
	Failures uint32        `mapstructure:"failures"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// SheetsConfig identifies the spreadsheet probed for reachability.
type SheetsConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SpreadsheetID string        `mapstructure:"spreadsheet_id"`
	Range         string        `mapstructure:"range"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LoadingConfig tunes the report refresh tracker.
type LoadingConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// BackupConfig controls the simulated backup runs.
type BackupConfig struct {
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	FailureRate float64       `mapstructure:"failure_rate"`
	Retain      int           `mapstructure:"retain"`
	Collections []string      `mapstructure:"collections"`
	Seed        uint64        `mapstructure:"seed"`
	// Schedule is a cron spec for automatic incremental backups; empty disables them.
	Schedule string `mapstructure:"schedule"`
}

// MaintenanceConfig schedules the background cleanup jobs.
type MaintenanceConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	RetentionSchedule string `mapstructure:"retention_schedule"`
	PurgeSchedule     string `mapstructure:"purge_schedule"`
	SweepSchedule     string `mapstructure:"sweep_schedule"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Namespace  string           `mapstructure:"namespace"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// MaintenanceMaxAge flags maintenance jobs that have not succeeded recently.
	MaintenanceMaxAge time.Duration `mapstructure:"maintenance_max_age"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("VELOIGP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/veloigp.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "veloigp")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "veloigp")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")

	v.SetDefault("data.cache_ttl", "5m")
	v.SetDefault("data.seed", 0)
	v.SetDefault("data.operator_count", 12)
	v.SetDefault("data.call_count", 50)

	v.SetDefault("pbx.base_url", "")
	v.SetDefault("pbx.token", "")
	v.SetDefault("pbx.timeout", "15s")
	v.SetDefault("pbx.user_agent", "veloigp-dashboard")
	v.SetDefault("pbx.breaker.failures", 5)
	v.SetDefault("pbx.breaker.cooldown", "30s")

	v.SetDefault("sheets.base_url", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.range", "A1:Z1000")
	v.SetDefault("sheets.api_key", "")
	v.SetDefault("sheets.timeout", "10s")

	v.SetDefault("loading.timeout", "15s")
	v.SetDefault("loading.max_retries", 3)

	v.SetDefault("backup.min_delay", "2s")
	v.SetDefault("backup.max_delay", "5s")
	v.SetDefault("backup.failure_rate", 0.1)
	v.SetDefault("backup.retain", 10)
	v.SetDefault("backup.collections", []string{})
	v.SetDefault("backup.seed", 0)
	v.SetDefault("backup.schedule", "")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.retention_schedule", "@hourly")
	v.SetDefault("maintenance.purge_schedule", "@every 30m")
	v.SetDefault("maintenance.sweep_schedule", "@every 5m")

	v.SetDefault("monitoring.namespace", "veloigp")
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.probe_timeout", "5s")
	v.SetDefault("monitoring.health_check.maintenance_max_age", "3h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
