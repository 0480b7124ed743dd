package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/charlesng35/veloigp/internal/loading"
)

// ApplyRuntimeDefaults repairs values that would otherwise break start-up and
// creates the SQLite data directory. It returns the keys it adjusted so callers
// can log them.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	adjusted := make(map[string]bool)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = 8000
		adjusted["server.port"] = true
	}
	if cfg.Loading.Timeout <= 0 {
		cfg.Loading.Timeout = loading.DefaultTimeout
		adjusted["loading.timeout"] = true
	}
	if cfg.Loading.MaxRetries < 0 {
		cfg.Loading.MaxRetries = loading.DefaultMaxRetries
		adjusted["loading.max_retries"] = true
	}
	if cfg.Backup.FailureRate < 0 || cfg.Backup.FailureRate > 1 {
		cfg.Backup.FailureRate = min(max(cfg.Backup.FailureRate, 0), 1)
		adjusted["backup.failure_rate"] = true
	}
	if cfg.Backup.MaxDelay < cfg.Backup.MinDelay {
		cfg.Backup.MaxDelay = cfg.Backup.MinDelay
		adjusted["backup.max_delay"] = true
	}

	schedules := map[string]*string{
		"backup.schedule":                &cfg.Backup.Schedule,
		"maintenance.retention_schedule": &cfg.Maintenance.RetentionSchedule,
		"maintenance.purge_schedule":     &cfg.Maintenance.PurgeSchedule,
		"maintenance.sweep_schedule":     &cfg.Maintenance.SweepSchedule,
	}
	for key, spec := range schedules {
		*spec = strings.TrimSpace(*spec)
		if *spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(*spec); err != nil {
			return adjusted, fmt.Errorf("%s: invalid cron spec %q: %w", key, *spec, err)
		}
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	path := strings.TrimSpace(cfg.Database.Path)
	if (driver == "" || driver == "sqlite") && path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return adjusted, fmt.Errorf("create data directory: %w", err)
		}
	}

	return adjusted, nil
}
