package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BackupTableName is the fixed name under which backup records persist.
const BackupTableName = "veloigp_backups"

// BackupType distinguishes full snapshots from incremental ones.
type BackupType string

const (
	BackupFull        BackupType = "full"
	BackupIncremental BackupType = "incremental"
)

// BackupStatus tracks the lifecycle of a backup record.
type BackupStatus string

const (
	BackupInProgress BackupStatus = "in_progress"
	BackupSuccess    BackupStatus = "success"
	BackupFailed     BackupStatus = "failed"
)

// Terminal reports whether no further transition is allowed from the status.
func (s BackupStatus) Terminal() bool {
	return s == BackupSuccess || s == BackupFailed
}

// BackupRecord describes one simulated backup run.
type BackupRecord struct {
	// Seq preserves insertion order; retention keeps the highest values.
	Seq         uint64                      `gorm:"primaryKey;autoIncrement" json:"-"`
	ID          string                      `gorm:"uniqueIndex;size:36" json:"id"`
	Timestamp   time.Time                   `gorm:"index" json:"timestamp"`
	Type        BackupType                  `gorm:"size:16" json:"type"`
	Size        int64                       `json:"size"`
	Status      BackupStatus                `gorm:"size:16;index" json:"status"`
	Collections datatypes.JSONSlice[string] `json:"collections"`
	Description string                      `gorm:"size:512" json:"description"`
	CompletedAt *time.Time                  `json:"completed_at,omitempty"`
	Error       string                      `gorm:"size:512" json:"error,omitempty"`
}

// TableName pins the backup table to its fixed storage name.
func (BackupRecord) TableName() string {
	return BackupTableName
}

// BeforeCreate assigns an identifier when the caller did not supply one.
func (b *BackupRecord) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
