package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/veloigp/internal/cache"
	testutil "github.com/charlesng35/veloigp/internal/database/testutil"
	"github.com/charlesng35/veloigp/internal/middleware"
	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/services"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func setupMonitoring(t *testing.T) {
	t.Helper()
	module, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(module)
	t.Cleanup(func() { monitoring.SetModule(nil) })
}

func jobSummary(t *testing.T, name string) monitoring.MaintenanceJobSummary {
	t.Helper()
	for _, job := range monitoring.Snapshot().Maintenance.Jobs {
		if job.Job == name {
			return job
		}
	}
	t.Fatalf("job %s not recorded", name)
	return monitoring.MaintenanceJobSummary{}
}

func TestCleanerRunOnce(t *testing.T) {
	setupMonitoring(t)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	backups, err := services.NewBackupService(db, services.BackupConfig{Retain: 2, Seed: 3}, services.WithBackupSleep(noSleep))
	require.NoError(t, err)
	t.Cleanup(backups.Close)
	for i := 0; i < 4; i++ {
		_, err := backups.CreateFullBackup(ctx, "")
		require.NoError(t, err)
	}

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewDatabaseStore(db)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "stale", Value: []byte(`1`), ExpiresAt: now.Add(-time.Minute)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "fresh", Value: []byte(`2`), ExpiresAt: now.Add(time.Hour)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "forever", Value: []byte(`3`)}).Error)

	limiter := middleware.NewRateLimiter(1, time.Nanosecond)
	limiter.Allow("client|/api")
	time.Sleep(time.Millisecond)

	cleaner := NewCleaner(
		WithBackups(backups),
		WithStore(store),
		WithRateLimiter(limiter),
		WithNow(func() time.Time { return now }),
	)
	require.NoError(t, cleaner.RunOnce(ctx))

	records, err := backups.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Order("key").Pluck("key", &keys).Error)
	require.Equal(t, []string{"forever", "fresh"}, keys)

	require.Zero(t, limiter.Sweep())

	for _, name := range []string{JobBackupRetention, JobKVPurge, JobRateLimitSweep} {
		job := jobSummary(t, name)
		require.Equal(t, "success", job.LastStatus)
		require.EqualValues(t, 1, job.TotalRuns)
	}
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is locked")
}

type countingSweeper struct{ calls int }

func (s *countingSweeper) Sweep() int {
	s.calls++
	return 0
}

func TestCleanerRunOnceAggregatesFailures(t *testing.T) {
	setupMonitoring(t)
	sweeper := &countingSweeper{}

	cleaner := NewCleaner(WithStore(failingPurger{}), WithRateLimiter(sweeper))
	err := cleaner.RunOnce(context.Background())
	require.ErrorContains(t, err, "kv_purge: database is locked")
	require.Equal(t, 1, sweeper.calls)

	job := jobSummary(t, JobKVPurge)
	require.Equal(t, "failure", job.LastStatus)
	require.EqualValues(t, 1, job.ConsecutiveFailures)
	require.Equal(t, "database is locked", job.LastError)
}

func TestCleanerStartRegistersEnabledJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	backups, err := services.NewBackupService(db, services.BackupConfig{}, services.WithBackupSleep(noSleep))
	require.NoError(t, err)
	t.Cleanup(backups.Close)

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(
		WithCron(c),
		WithBackups(backups),
		WithStore(cache.NewDatabaseStore(db)),
		WithBackupSchedule("0 3 * * *"),
	)
	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, c.Entries(), 3)
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	cleaner := NewCleaner(WithStore(failingPurger{}), WithPurgeSchedule("not a schedule"))
	require.ErrorContains(t, cleaner.Start(), "kv_purge")
}

func TestCleanerWithoutJobsIsNoop(t *testing.T) {
	cleaner := NewCleaner()
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

func TestScheduledBackupStartsIncremental(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	backups, err := services.NewBackupService(db, services.BackupConfig{}, services.WithBackupSleep(noSleep))
	require.NoError(t, err)

	cleaner := NewCleaner(WithBackups(backups))
	message, err := cleaner.scheduledBackup(context.Background())
	require.NoError(t, err)
	require.Contains(t, message, "started backup ")
	backups.Close()

	records, err := backups.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, models.BackupIncremental, records[0].Type)
	require.NotEqual(t, models.BackupInProgress, records[0].Status)
}

func TestCleanerIntervalsFollowSchedules(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	backups, err := services.NewBackupService(db, services.BackupConfig{}, services.WithBackupSleep(noSleep))
	require.NoError(t, err)
	t.Cleanup(backups.Close)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cleaner := NewCleaner(
		WithNow(func() time.Time { return now }),
		WithBackups(backups),
		WithStore(cache.NewDatabaseStore(db)),
		WithRateLimiter(middleware.NewRateLimiter(1, time.Minute)),
		WithBackupSchedule("0 3 * * *"),
	)

	require.Equal(t, map[string]time.Duration{
		JobBackupRetention: time.Hour,
		JobKVPurge:         30 * time.Minute,
		JobRateLimitSweep:  5 * time.Minute,
		JobScheduledBackup: 24 * time.Hour,
	}, cleaner.Intervals())

	weekdays := NewCleaner(
		WithNow(func() time.Time { return now }),
		WithBackups(backups),
		WithBackupSchedule("0 3 * * 1-5"),
	)
	require.Equal(t, 72*time.Hour, weekdays.Intervals()[JobScheduledBackup])
}
