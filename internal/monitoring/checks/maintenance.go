package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/veloigp/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// MaintenanceOption customises the maintenance probe.
type MaintenanceOption func(*maintenanceProbe)

// WithJobIntervals supplies the expected gap between runs of each job. A job
// is stale once it is two intervals old, and never sooner than maxAge.
func WithJobIntervals(intervals map[string]time.Duration) MaintenanceOption {
	return func(p *maintenanceProbe) {
		for job, interval := range intervals {
			if interval > 0 {
				p.intervals[job] = interval
			}
		}
	}
}

// WithMaintenanceClock overrides the clock used for staleness.
func WithMaintenanceClock(now func() time.Time) MaintenanceOption {
	return func(p *maintenanceProbe) {
		if now != nil {
			p.now = now
		}
	}
}

type maintenanceProbe struct {
	maxAge    time.Duration
	intervals map[string]time.Duration
	now       func() time.Time
}

func (p *maintenanceProbe) limit(job string) time.Duration {
	if interval, ok := p.intervals[job]; ok && 2*interval > p.maxAge {
		return 2 * interval
	}
	return p.maxAge
}

// Maintenance reports liveness of the cron jobs. A failing job is down, a job
// that stopped running is degraded and a job waiting for its first run is up.
func Maintenance(maxAge time.Duration, opts ...MaintenanceOption) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	probe := &maintenanceProbe{
		maxAge:    maxAge,
		intervals: make(map[string]time.Duration),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(probe)
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		jobs := monitoring.Snapshot().Maintenance.Jobs
		if len(jobs) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no maintenance runs recorded",
				Duration: time.Since(start),
			}
		}

		now := probe.now()
		status := monitoring.StatusUp
		var notes []string
		for _, job := range jobs {
			switch {
			case job.TotalRuns == 0:
				notes = append(notes, job.Job+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = worstStatus(status, monitoring.StatusDown)
				notes = append(notes, job.Job+": "+failureNote(job))
			}

			if limit := probe.limit(job.Job); !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) > limit {
				status = worstStatus(status, monitoring.StatusDegraded)
				notes = append(notes, job.Job+": no run since "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(notes, "; "),
			Duration: time.Since(start),
		}
	})
}

func failureNote(job monitoring.MaintenanceJobSummary) string {
	if job.LastError == "" {
		return "failing"
	}
	return "failing (" + job.LastError + ")"
}

func worstStatus(current, candidate monitoring.ProbeStatus) monitoring.ProbeStatus {
	if current == monitoring.StatusDown || candidate == monitoring.StatusDown {
		return monitoring.StatusDown
	}
	if current == monitoring.StatusDegraded || candidate == monitoring.StatusDegraded {
		return monitoring.StatusDegraded
	}
	return monitoring.StatusUp
}
