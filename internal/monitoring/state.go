package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	liveResponses     atomic.Uint64
	fallbackResponses atomic.Uint64
	lastFallback      atomic.Value // *FallbackRecord

	backupSuccess atomic.Uint64
	backupFailed  atomic.Uint64

	loadingStatus  atomic.Value // string
	loadingMessage atomic.Value // string
	loadingErrors  atomic.Uint64
	loadingUpdated atomic.Int64

	realtimeConnections atomic.Int64
	realtimeBroadcasts  atomic.Uint64
	realtimeFailures    atomic.Uint64
	realtimeLastFailure atomic.Value // *FailureRecord

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	store := &statStore{}
	store.lastFallback.Store((*FallbackRecord)(nil))
	store.realtimeLastFailure.Store((*FailureRecord)(nil))
	store.loadingStatus.Store("idle")
	store.loadingMessage.Store("")
	return store
}

func (s *statStore) summary() Summary {
	lastFallback, _ := s.lastFallback.Load().(*FallbackRecord)
	lastFailure, _ := s.realtimeLastFailure.Load().(*FailureRecord)
	loadingStatus, _ := s.loadingStatus.Load().(string)
	loadingMessage, _ := s.loadingMessage.Load().(string)

	var loadingUpdated time.Time
	if ns := s.loadingUpdated.Load(); ns > 0 {
		loadingUpdated = time.Unix(0, ns)
	}

	return Summary{
		GeneratedAt: time.Now(),
		Cache: CacheSummary{
			Hits:   s.cacheHits.Load(),
			Misses: s.cacheMisses.Load(),
		},
		Data: DataSummary{
			Live:         s.liveResponses.Load(),
			Fallback:     s.fallbackResponses.Load(),
			LastFallback: lastFallback,
		},
		Backups: BackupSummary{
			Success: s.backupSuccess.Load(),
			Failed:  s.backupFailed.Load(),
		},
		Loading: LoadingSummary{
			Status:    loadingStatus,
			Message:   loadingMessage,
			Errors:    s.loadingErrors.Load(),
			UpdatedAt: loadingUpdated,
		},
		Realtime: RealtimeSummary{
			ActiveConnections: s.realtimeConnections.Load(),
			Broadcasts:        s.realtimeBroadcasts.Load(),
			Failures:          s.realtimeFailures.Load(),
			LastFailure:       lastFailure,
		},
		Maintenance: MaintenanceSummary{
			Jobs: s.cloneMaintenance(),
		},
	}
}

func (s *statStore) recordCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Add(1)
		return
	}
	s.cacheMisses.Add(1)
}

func (s *statStore) recordDataSource(entity, source, reason string) {
	if source != "fallback" {
		s.liveResponses.Add(1)
		return
	}
	s.fallbackResponses.Add(1)
	s.lastFallback.Store(&FallbackRecord{Entity: entity, Reason: reason, Occurred: time.Now()})
}

func (s *statStore) recordBackup(status string) {
	switch status {
	case "success":
		s.backupSuccess.Add(1)
	default:
		s.backupFailed.Add(1)
	}
}

func (s *statStore) recordLoading(status, message string) {
	s.loadingStatus.Store(status)
	s.loadingMessage.Store(message)
	s.loadingUpdated.Store(time.Now().UnixNano())
	if status == "error" {
		s.loadingErrors.Add(1)
	}
}

func (s *statStore) recordRealtimeConnection(delta int64) int64 {
	value := s.realtimeConnections.Add(delta)
	if value < 0 {
		s.realtimeConnections.Store(0)
	}
	return value
}

func (s *statStore) recordRealtimeFailure(record FailureRecord) {
	s.realtimeFailures.Add(1)
	cloned := record
	s.realtimeLastFailure.Store(&cloned)
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Job < summaries[j].Job })
	return summaries
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	if value, ok := s.maintenance.Load(job); ok {
		return value.(*maintenanceStats)
	}
	actual, _ := s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return actual.(*maintenanceStats)
}

type maintenanceStats struct {
	lastStatus          atomic.Value // string
	lastError           atomic.Value // string
	lastRun             atomic.Int64 // unix nano
	lastDuration        atomic.Int64
	lastSuccessfulRun   atomic.Int64
	consecutiveFailures atomic.Uint64
	totalRuns           atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           unixNano(m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		LastSuccessAt:       unixNano(m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	if result == "success" {
		m.lastError.Store("")
		m.consecutiveFailures.Store(0)
		m.lastSuccessfulRun.Store(now.UnixNano())
		return
	}
	m.lastError.Store(message)
	m.consecutiveFailures.Add(1)
}

func unixNano(ns int64) time.Time {
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
