package monitoring

import (
	"strings"
	"time"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	observeDuration(module.metrics.apiLatency.WithLabelValues(method, path, status), duration)
}

// RecordCacheLookup counts a TTL cache hit or miss for an entity key.
func RecordCacheLookup(entity string, hit bool) {
	module := ensureModule()
	if module == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	module.metrics.cacheLookups.WithLabelValues(normalizeLabel(entity), result).Inc()
	module.stats.recordCacheLookup(hit)
}

// RecordDataSource counts where a dashboard response came from. Reason is
// empty for live data.
func RecordDataSource(entity, source, reason string) {
	module := ensureModule()
	if module == nil {
		return
	}
	entity = normalizeLabel(entity)
	source = normalizeLabel(source)
	reason = strings.TrimSpace(strings.ToLower(reason))
	module.metrics.dataRequests.WithLabelValues(entity, source, reason).Inc()
	module.stats.recordDataSource(entity, source, reason)
}

// RecordPBXRequest tracks a call to the vendor reporting API.
func RecordPBXRequest(result string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.pbxRequests.WithLabelValues(normalizeLabel(result)).Inc()
	observeDuration(module.metrics.pbxLatency, duration)
}

// RecordBackup captures a backup reaching a terminal status.
func RecordBackup(backupType, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	backupType = normalizeLabel(backupType)
	status = normalizeLabel(status)
	module.metrics.backupOutcomes.WithLabelValues(backupType, status).Inc()
	observeDuration(module.metrics.backupDuration.WithLabelValues(backupType), duration)
	module.stats.recordBackup(status)
}

// RecordLoadingTransition counts report refresh state changes.
func RecordLoadingTransition(status, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	status = normalizeLabel(status)
	module.metrics.loadingTransitions.WithLabelValues(status).Inc()
	module.stats.recordLoading(status, strings.TrimSpace(message))
}

// RecordExport counts export attempts per format.
func RecordExport(format, result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.exports.WithLabelValues(normalizeLabel(format), normalizeLabel(result)).Inc()
}

// RecordRealtimeConnection adjusts the websocket connection gauge.
func RecordRealtimeConnection(delta int64) {
	module := ensureModule()
	if module == nil || delta == 0 {
		return
	}
	module.metrics.realtimeConnections.Add(float64(delta))
	if module.stats.recordRealtimeConnection(delta) < 0 {
		module.metrics.realtimeConnections.Set(0)
	}
}

// RecordRealtimeBroadcast increments broadcast counters per stream.
func RecordRealtimeBroadcast(stream string) {
	module := ensureModule()
	if module == nil {
		return
	}
	stream = normalizePath(stream)
	module.metrics.realtimeBroadcasts.WithLabelValues(stream).Inc()
	module.stats.realtimeBroadcasts.Add(1)
}

// RecordRealtimeFailure snapshots a realtime failure occurrence.
func RecordRealtimeFailure(stream, failureType, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	stream = normalizePath(stream)
	failureType = normalizeLabel(failureType)
	module.metrics.realtimeFailures.WithLabelValues(stream, failureType).Inc()
	module.stats.recordRealtimeFailure(FailureRecord{
		Stream:   stream,
		Type:     failureType,
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	return normalizePath(path)
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
