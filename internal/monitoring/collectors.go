package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	apiLatency          *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	dataRequests        *prometheus.CounterVec
	pbxRequests         *prometheus.CounterVec
	pbxLatency          prometheus.Histogram
	backupOutcomes      *prometheus.CounterVec
	backupDuration      *prometheus.HistogramVec
	loadingTransitions  *prometheus.CounterVec
	exports             *prometheus.CounterVec
	realtimeConnections prometheus.Gauge
	realtimeBroadcasts  *prometheus.CounterVec
	realtimeFailures    *prometheus.CounterVec
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
}

func newCollectors(namespace string) *collectors {
	buckets := prometheus.DefBuckets
	backupBuckets := []float64{0.5, 1, 2, 3, 4, 5, 7.5, 10, 20, 60}

	return &collectors{
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "TTL cache lookups by result",
			},
			[]string{"entity", "result"},
		),
		dataRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "data_requests_total",
				Help:      "Dashboard data requests by source (live or fallback) and fallback reason",
			},
			[]string{"entity", "source", "reason"},
		),
		pbxRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pbx_requests_total",
				Help:      "PBX report requests by result",
			},
			[]string{"result"},
		),
		pbxLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pbx_request_duration_seconds",
				Help:      "PBX report request duration",
				Buckets:   buckets,
			},
		),
		backupOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backups_total",
				Help:      "Completed simulated backups by type and status",
			},
			[]string{"type", "status"},
		),
		backupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backup_duration_seconds",
				Help:      "Simulated backup duration",
				Buckets:   backupBuckets,
			},
			[]string{"type"},
		),
		loadingTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loading_transitions_total",
				Help:      "Report refresh state transitions",
			},
			[]string{"status"},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Export requests by format and result",
			},
			[]string{"format", "result"},
		),
		realtimeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realtime_connections",
				Help:      "Active realtime websocket connections",
			},
		),
		realtimeBroadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_broadcasts_total",
				Help:      "Messages broadcast across realtime streams",
			},
			[]string{"stream"},
		),
		realtimeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_failures_total",
				Help:      "Realtime delivery failures",
			},
			[]string{"stream", "type"},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job duration",
				Buckets:   buckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp",
				Help:      "Timestamp of the last successful maintenance run (seconds since epoch)",
			},
			[]string{"job"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.apiLatency,
		c.cacheLookups,
		c.dataRequests,
		c.pbxRequests,
		c.pbxLatency,
		c.backupOutcomes,
		c.backupDuration,
		c.loadingTransitions,
		c.exports,
		c.realtimeConnections,
		c.realtimeBroadcasts,
		c.realtimeFailures,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
