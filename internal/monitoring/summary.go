package monitoring

import "time"

// Summary surfaces aggregated monitoring data for the operations dashboard.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Cache       CacheSummary       `json:"cache"`
	Data        DataSummary        `json:"data"`
	Backups     BackupSummary      `json:"backups"`
	Loading     LoadingSummary     `json:"loading"`
	Realtime    RealtimeSummary    `json:"realtime"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type CacheSummary struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// FallbackRecord remembers the most recent response served from generated data.
type FallbackRecord struct {
	Entity   string    `json:"entity"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred_at"`
}

type DataSummary struct {
	Live         uint64          `json:"live"`
	Fallback     uint64          `json:"fallback"`
	LastFallback *FallbackRecord `json:"last_fallback,omitempty"`
}

type BackupSummary struct {
	Success uint64 `json:"success"`
	Failed  uint64 `json:"failed"`
}

type LoadingSummary struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Errors    uint64    `json:"errors"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FailureRecord struct {
	Stream   string    `json:"stream"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred_at"`
}

type RealtimeSummary struct {
	ActiveConnections int64          `json:"active_connections"`
	Broadcasts        uint64         `json:"broadcasts"`
	Failures          uint64         `json:"failures"`
	LastFailure       *FailureRecord `json:"last_failure,omitempty"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := ensureModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
