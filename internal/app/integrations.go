package app

import (
	"strings"

	"github.com/charlesng35/veloigp/internal/database"
	"github.com/charlesng35/veloigp/internal/loading"
	"github.com/charlesng35/veloigp/internal/pbx"
	"github.com/charlesng35/veloigp/internal/services"
	"github.com/charlesng35/veloigp/internal/sheets"
)

// ConnectionConfig converts the database section into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	var auth DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	default:
		return cfg
	}
	cfg.Host = strings.TrimSpace(auth.Host)
	cfg.Port = auth.Port
	cfg.Name = strings.TrimSpace(auth.Database)
	cfg.User = strings.TrimSpace(auth.Username)
	cfg.Password = auth.Password
	return cfg
}

// ClientConfig converts the PBX section into a pbx.Config.
func (c PBXConfig) ClientConfig() pbx.Config {
	return pbx.Config{
		BaseURL:         strings.TrimSpace(c.BaseURL),
		Token:           strings.TrimSpace(c.Token),
		Timeout:         c.Timeout,
		UserAgent:       strings.TrimSpace(c.UserAgent),
		BreakerFailures: c.Breaker.Failures,
		BreakerCooldown: c.Breaker.Cooldown,
	}
}

// ClientConfig converts the sheets section into a sheets.Config.
func (c SheetsConfig) ClientConfig() sheets.Config {
	return sheets.Config{
		BaseURL:       strings.TrimSpace(c.BaseURL),
		SpreadsheetID: strings.TrimSpace(c.SpreadsheetID),
		Range:         strings.TrimSpace(c.Range),
		APIKey:        strings.TrimSpace(c.APIKey),
		Timeout:       c.Timeout,
	}
}

// ServiceConfig converts the data section into a services.DataServiceConfig.
func (c DataConfig) ServiceConfig() services.DataServiceConfig {
	return services.DataServiceConfig{
		CacheTTL:      c.CacheTTL,
		OperatorCount: c.OperatorCount,
		CallCount:     c.CallCount,
	}
}

// RefreshConfig converts the loading section into a services.RefreshConfig.
func (c LoadingConfig) RefreshConfig(opts ...loading.Option) services.RefreshConfig {
	return services.RefreshConfig{
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		TrackerOptions: opts,
	}
}

// ServiceConfig converts the backup section into a services.BackupConfig.
func (c BackupConfig) ServiceConfig() services.BackupConfig {
	collections := make([]string, 0, len(c.Collections))
	for _, name := range c.Collections {
		if name = strings.TrimSpace(name); name != "" {
			collections = append(collections, name)
		}
	}
	return services.BackupConfig{
		MinDelay:    c.MinDelay,
		MaxDelay:    c.MaxDelay,
		FailureRate: c.FailureRate,
		Retain:      c.Retain,
		Collections: collections,
		Seed:        c.Seed,
	}
}
