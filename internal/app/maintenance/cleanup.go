package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/pkg/logger"
)

// Job names as they appear in metrics and the maintenance health check.
const (
	JobBackupRetention = "backup_retention"
	JobKVPurge         = "kv_purge"
	JobRateLimitSweep  = "rate_limit_sweep"
	JobScheduledBackup = "scheduled_backup"
)

const (
	defaultRetentionSpec = "@hourly"
	defaultPurgeSpec     = "@every 30m"
	defaultSweepSpec     = "@every 5m"

	// intervalSamples covers a week of daily runs.
	intervalSamples = 8
)

// BackupManager is the part of the backup service maintenance drives.
type BackupManager interface {
	CleanupOldBackups(ctx context.Context) (int64, error)
	StartBackup(ctx context.Context, backupType models.BackupType, description string) (*models.BackupRecord, error)
}

// ExpiredPurger drops expired key/value entries.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper drops stale in-memory counters.
type Sweeper interface {
	Sweep() int
}

// Cleaner coordinates background maintenance: backup retention, purging of
// expired preference entries, rate limiter sweeps and optional scheduled backups.
type Cleaner struct {
	backups BackupManager
	store   ExpiredPurger
	limiter Sweeper
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	retentionSchedule string
	purgeSchedule     string
	sweepSchedule     string
	backupSchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for purge comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithBackups enables backup retention and, with a schedule, automatic backups.
func WithBackups(backups BackupManager) Option {
	return func(cleaner *Cleaner) {
		cleaner.backups = backups
	}
}

// WithStore enables purging of expired key/value entries.
func WithStore(store ExpiredPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.store = store
	}
}

// WithRateLimiter enables periodic rate limiter sweeps.
func WithRateLimiter(limiter Sweeper) Option {
	return func(cleaner *Cleaner) {
		cleaner.limiter = limiter
	}
}

// WithRetentionSchedule overrides the cron specification for backup retention.
func WithRetentionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// WithPurgeSchedule overrides the cron specification for key/value purges.
func WithPurgeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.purgeSchedule = spec
		}
	}
}

// WithSweepSchedule overrides the cron specification for rate limiter sweeps.
func WithSweepSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sweepSchedule = spec
		}
	}
}

// WithBackupSchedule enables automatic incremental backups on spec.
func WithBackupSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		cleaner.backupSchedule = spec
	}
}

// NewCleaner constructs a Cleaner. Jobs whose dependency was not supplied are skipped.
func NewCleaner(opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		now:               time.Now,
		retentionSchedule: defaultRetentionSpec,
		purgeSchedule:     defaultPurgeSpec,
		sweepSchedule:     defaultSweepSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (string, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.backups != nil {
		jobs = append(jobs, job{JobBackupRetention, c.retentionSchedule, c.cleanupBackups})
	}
	if c.store != nil {
		jobs = append(jobs, job{JobKVPurge, c.purgeSchedule, c.purgeStore})
	}
	if c.limiter != nil {
		jobs = append(jobs, job{JobRateLimitSweep, c.sweepSchedule, c.sweepLimiter})
	}
	return jobs
}

// scheduled lists every job Start registers, scheduled backups included.
func (c *Cleaner) scheduled() []job {
	jobs := c.jobs()
	if c.backups != nil && c.backupSchedule != "" {
		jobs = append(jobs, job{JobScheduledBackup, c.backupSchedule, c.scheduledBackup})
	}
	return jobs
}

// Intervals returns the expected gap between runs of each scheduled job: the
// widest of the next few gaps of its cron schedule.
func (c *Cleaner) Intervals() map[string]time.Duration {
	intervals := make(map[string]time.Duration)
	for _, j := range c.scheduled() {
		schedule, err := cron.ParseStandard(j.schedule)
		if err != nil {
			continue
		}
		if gap := widestGap(schedule, c.now()); gap > 0 {
			intervals[j.name] = gap
		}
	}
	return intervals
}

func widestGap(schedule cron.Schedule, from time.Time) time.Duration {
	var widest time.Duration
	prev := schedule.Next(from)
	for i := 0; i < intervalSamples && !prev.IsZero(); i++ {
		next := schedule.Next(prev)
		if next.IsZero() {
			break
		}
		widest = max(widest, next.Sub(prev))
		prev = next
	}
	return widest
}

// Start registers the enabled jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	jobs := c.scheduled()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_ = c.execute(context.Background(), j)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", j.name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every cleanup job sequentially. Scheduled backups are not
// part of it. Primarily used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.execute(ctx, j))
	}
	return errs
}

func (c *Cleaner) execute(ctx context.Context, j job) error {
	start := time.Now()
	message, err := j.run(ctx)
	duration := time.Since(start)

	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		monitoring.RecordMaintenanceRun(j.name, "failure", err.Error(), duration)
		return fmt.Errorf("%s: %w", j.name, err)
	}
	c.log.Debug("maintenance job completed", zap.String("job", j.name), zap.String("result", message))
	monitoring.RecordMaintenanceRun(j.name, "success", message, duration)
	return nil
}

func (c *Cleaner) cleanupBackups(ctx context.Context) (string, error) {
	removed, err := c.backups.CleanupOldBackups(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("removed %d backups", removed), nil
}

func (c *Cleaner) purgeStore(ctx context.Context) (string, error) {
	removed, err := c.store.PurgeExpired(ctx, c.now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("purged %d entries", removed), nil
}

func (c *Cleaner) sweepLimiter(context.Context) (string, error) {
	return fmt.Sprintf("dropped %d counters", c.limiter.Sweep()), nil
}

func (c *Cleaner) scheduledBackup(ctx context.Context) (string, error) {
	record, err := c.backups.StartBackup(ctx, models.BackupIncremental, "scheduled incremental backup")
	if err != nil {
		return "", err
	}
	return "started backup " + record.ID, nil
}
