package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/veloigp/internal/models"
)

// DefaultDashboardConfig is stored under the dashboard config key on first start.
const DefaultDashboardConfig = `{"refresh_interval":30,"theme":"light","language":"es","default_range_days":7}`

// DashboardConfigKey is the fixed key holding the dashboard configuration blob.
const DashboardConfigKey = "veloigp-config"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CacheEntry{},
		&models.BackupRecord{},
	)
}

// SeedData stores the default dashboard configuration when none exists yet.
func SeedData(db *gorm.DB) error {
	entry := models.CacheEntry{
		Key:   DashboardConfigKey,
		Value: []byte(DefaultDashboardConfig),
	}
	return db.Where(models.CacheEntry{Key: entry.Key}).Attrs(entry).FirstOrCreate(&models.CacheEntry{}).Error
}
