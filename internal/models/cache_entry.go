package models

import (
	"time"
)

// CacheEntryTableName holds the persisted key/value blobs.
const CacheEntryTableName = "cache_entries"

// CacheEntry is one persisted key/value blob, e.g. a stored UI preference.
// A zero ExpiresAt never expires.
type CacheEntry struct {
	Key       string `gorm:"primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the key/value table name across drivers.
func (CacheEntry) TableName() string {
	return CacheEntryTableName
}
