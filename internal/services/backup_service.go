package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/realtime"
	apperrors "github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/logger"
)

const (
	defaultBackupMinDelay    = 2 * time.Second
	defaultBackupMaxDelay    = 5 * time.Second
	defaultBackupFailureRate = 0.10
	defaultBackupRetain      = 10

	backupFailureMessage = "simulated storage failure"
)

var (
	ErrBackupNotFound   = apperrors.New("BACKUP_NOT_FOUND", "Backup not found", http.StatusNotFound)
	ErrBackupInProgress = apperrors.New("BACKUP_IN_PROGRESS", "Backup is still running", http.StatusConflict)
	ErrBackupType       = apperrors.NewBadRequest("backup type must be full or incremental")
)

// DefaultBackupCollections are the datasets a simulated backup claims to copy.
var DefaultBackupCollections = []string{"operators", "calls", "metrics", "queues", "config"}

// BackupConfig tunes the simulated backup run.
type BackupConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	Retain      int
	Collections []string
	Seed        uint64
}

func (c BackupConfig) normalise() (BackupConfig, error) {
	if c.MinDelay <= 0 && c.MaxDelay <= 0 {
		c.MinDelay, c.MaxDelay = defaultBackupMinDelay, defaultBackupMaxDelay
	}
	if c.MinDelay < 0 {
		c.MinDelay = 0
	}
	if c.MaxDelay < c.MinDelay {
		return c, fmt.Errorf("backup service: max delay %s is below min delay %s", c.MaxDelay, c.MinDelay)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return c, fmt.Errorf("backup service: failure rate %.2f outside [0,1]", c.FailureRate)
	}
	if c.Retain <= 0 {
		c.Retain = defaultBackupRetain
	}
	if len(c.Collections) == 0 {
		c.Collections = DefaultBackupCollections
	}
	return c, nil
}

// DefaultBackupConfig mirrors the production simulation: 2-5s runs, 10% failures.
func DefaultBackupConfig() BackupConfig {
	return BackupConfig{
		MinDelay:    defaultBackupMinDelay,
		MaxDelay:    defaultBackupMaxDelay,
		FailureRate: defaultBackupFailureRate,
		Retain:      defaultBackupRetain,
	}
}

// BackupStats summarises stored backups.
type BackupStats struct {
	Total         int64      `json:"total"`
	InProgress    int64      `json:"in_progress"`
	Success       int64      `json:"success"`
	Failed        int64      `json:"failed"`
	TotalSize     int64      `json:"total_size"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BackupOption customises a BackupService.
type BackupOption func(*BackupService)

// WithBackupRand replaces the random source driving delays, sizes and failures.
func WithBackupRand(r *rand.Rand) BackupOption {
	return func(s *BackupService) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithBackupSleep replaces the delay implementation, e.g. with a no-op in tests.
func WithBackupSleep(fn SleepFunc) BackupOption {
	return func(s *BackupService) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithBackupBroadcaster publishes completion events on the backups stream.
func WithBackupBroadcaster(b realtime.Broadcaster) BackupOption {
	return func(s *BackupService) {
		s.broadcaster = b
	}
}

// BackupService simulates backups of the dashboard data and persists their records.
type BackupService struct {
	db          *gorm.DB
	cfg         BackupConfig
	broadcaster realtime.Broadcaster
	sleep       SleepFunc
	now         func() time.Time
	log         *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBackupService constructs a BackupService.
func NewBackupService(db *gorm.DB, cfg BackupConfig, opts ...BackupOption) (*BackupService, error) {
	if db == nil {
		return nil, errors.New("backup service: db is required")
	}
	cfg, err := cfg.normalise()
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &BackupService{
		db:     db,
		cfg:    cfg,
		sleep:  sleepContext,
		now:    time.Now,
		log:    logger.WithModule("backup"),
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Config returns the effective configuration.
func (s *BackupService) Config() BackupConfig {
	return s.cfg
}

// CreateFullBackup runs a full backup to completion.
func (s *BackupService) CreateFullBackup(ctx context.Context, description string) (*models.BackupRecord, error) {
	return s.create(ctx, models.BackupFull, description)
}

// CreateIncrementalBackup runs an incremental backup to completion.
func (s *BackupService) CreateIncrementalBackup(ctx context.Context, description string) (*models.BackupRecord, error) {
	return s.create(ctx, models.BackupIncremental, description)
}

func (s *BackupService) create(ctx context.Context, backupType models.BackupType, description string) (*models.BackupRecord, error) {
	ctx = ensureContext(ctx)
	record, err := s.insert(ctx, backupType, description)
	if err != nil {
		return nil, err
	}
	if err := s.run(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// StartBackup records an in-progress backup and completes it in the background.
// The returned record reflects the state at insertion time.
func (s *BackupService) StartBackup(ctx context.Context, backupType models.BackupType, description string) (*models.BackupRecord, error) {
	ctx = ensureContext(ctx)
	if s.ctx.Err() != nil {
		return nil, errors.New("backup service: closed")
	}
	record, err := s.insert(ctx, backupType, description)
	if err != nil {
		return nil, err
	}

	snapshot := *record
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.run(s.ctx, record); err != nil {
			s.log.Error("background backup failed to persist", zap.String("backup_id", record.ID), zap.Error(err))
		}
	}()
	return &snapshot, nil
}

// Close cancels running background backups, marking them failed, and waits for them.
func (s *BackupService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *BackupService) insert(ctx context.Context, backupType models.BackupType, description string) (*models.BackupRecord, error) {
	switch backupType {
	case models.BackupFull, models.BackupIncremental:
	default:
		return nil, ErrBackupType
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = fmt.Sprintf("%s backup", backupType)
	}

	record := &models.BackupRecord{
		Timestamp:   s.now().UTC(),
		Type:        backupType,
		Status:      models.BackupInProgress,
		Collections: datatypes.JSONSlice[string](append([]string(nil), s.cfg.Collections...)),
		Description: description,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("backup service: create record: %w", err)
	}
	s.publish("backup.started", record)
	return record, nil
}

func (s *BackupService) run(ctx context.Context, record *models.BackupRecord) error {
	started := s.now()
	delay, failed, size := s.roll(record.Type)

	status := models.BackupSuccess
	var failure string
	if err := s.sleep(ctx, delay); err != nil {
		status, failure = models.BackupFailed, "backup cancelled: "+err.Error()
	} else if failed {
		status, failure = models.BackupFailed, backupFailureMessage
	}

	completed := s.now().UTC()
	updates := map[string]any{
		"status":       status,
		"completed_at": completed,
		"error":        failure,
	}
	if status == models.BackupSuccess {
		updates["size"] = size
	}

	// The record must reach a terminal status even when ctx was cancelled.
	err := s.db.WithContext(context.WithoutCancel(ctx)).
		Model(&models.BackupRecord{}).
		Where("id = ? AND status = ?", record.ID, models.BackupInProgress).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("backup service: finish record: %w", err)
	}

	record.Status = status
	record.CompletedAt = &completed
	record.Error = failure
	if status == models.BackupSuccess {
		record.Size = size
	}

	monitoring.RecordBackup(string(record.Type), string(status), s.now().Sub(started))
	if status == models.BackupSuccess {
		s.log.Info("backup completed", zap.String("backup_id", record.ID), zap.String("type", string(record.Type)), zap.Int64("size", size))
		s.publish("backup.completed", record)
	} else {
		s.log.Warn("backup failed", zap.String("backup_id", record.ID), zap.String("type", string(record.Type)), zap.String("error", failure))
		s.publish("backup.failed", record)
	}
	return nil
}

// roll draws the delay, the failure outcome and the payload size in one critical section.
func (s *BackupService) roll(backupType models.BackupType) (time.Duration, bool, int64) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	delay := s.cfg.MinDelay
	if span := s.cfg.MaxDelay - s.cfg.MinDelay; span > 0 {
		delay += time.Duration(s.rng.Int64N(int64(span) + 1))
	}
	failed := s.rng.Float64() < s.cfg.FailureRate

	const mb = 1 << 20
	var size int64
	if backupType == models.BackupFull {
		size = mb + s.rng.Int64N(49*mb)
	} else {
		size = mb/10 + s.rng.Int64N(5*mb)
	}
	return delay, failed, size
}

func (s *BackupService) publish(event string, record *models.BackupRecord) {
	if s.broadcaster == nil {
		return
	}
	snapshot := *record
	s.broadcaster.BroadcastStream(realtime.StreamBackups, realtime.Message{Event: event, Data: snapshot})
}

// List returns stored backups, newest first. A non-positive limit returns all.
func (s *BackupService) List(ctx context.Context, limit int) ([]models.BackupRecord, error) {
	ctx = ensureContext(ctx)
	query := s.db.WithContext(ctx).Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.BackupRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("backup service: list backups: %w", err)
	}
	return records, nil
}

// Get loads one backup by id.
func (s *BackupService) Get(ctx context.Context, id string) (*models.BackupRecord, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrBackupNotFound
	}

	var record models.BackupRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBackupNotFound
		}
		return nil, fmt.Errorf("backup service: get backup: %w", err)
	}
	return &record, nil
}

// Delete removes a finished backup. Running backups cannot be deleted.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !record.Status.Terminal() {
		return ErrBackupInProgress
	}
	if err := s.db.WithContext(ensureContext(ctx)).Where("id = ?", record.ID).Delete(&models.BackupRecord{}).Error; err != nil {
		return fmt.Errorf("backup service: delete backup: %w", err)
	}
	s.publish("backup.deleted", record)
	return nil
}

// CleanupOldBackups keeps the newest Retain records by insertion order and
// deletes the finished ones beyond that. It returns the number removed.
func (s *BackupService) CleanupOldBackups(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	var seqs []uint64
	err := s.db.WithContext(ctx).
		Model(&models.BackupRecord{}).
		Order("seq DESC").
		Pluck("seq", &seqs).Error
	if err != nil {
		return 0, fmt.Errorf("backup service: list backup sequence: %w", err)
	}
	if len(seqs) <= s.cfg.Retain {
		return 0, nil
	}
	stale := seqs[s.cfg.Retain:]

	result := s.db.WithContext(ctx).
		Where("seq IN ? AND status <> ?", stale, models.BackupInProgress).
		Delete(&models.BackupRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("backup service: delete stale backups: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.log.Info("old backups removed", zap.Int64("count", result.RowsAffected), zap.Int("retain", s.cfg.Retain))
	}
	return result.RowsAffected, nil
}

// Stats counts stored backups by status.
func (s *BackupService) Stats(ctx context.Context) (BackupStats, error) {
	ctx = ensureContext(ctx)

	var rows []struct {
		Status models.BackupStatus
		Count  int64
		Size   int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.BackupRecord{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(size), 0) AS size").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return BackupStats{}, fmt.Errorf("backup service: aggregate backups: %w", err)
	}

	var stats BackupStats
	for _, row := range rows {
		stats.Total += row.Count
		stats.TotalSize += row.Size
		switch row.Status {
		case models.BackupInProgress:
			stats.InProgress = row.Count
		case models.BackupSuccess:
			stats.Success = row.Count
		case models.BackupFailed:
			stats.Failed = row.Count
		}
	}

	var last models.BackupRecord
	err = s.db.WithContext(ctx).
		Where("status = ?", models.BackupSuccess).
		Order("seq DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return BackupStats{}, fmt.Errorf("backup service: last successful backup: %w", err)
	}
	if last.ID != "" {
		stats.LastSuccessAt = last.CompletedAt
	}
	return stats, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
