package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TrackerMetrics holds all Prometheus metrics for the tracker service.
type TrackerMetrics struct {
	JobsSubmitted      prometheus.Counter
	JobsFinished       *prometheus.CounterVec
	JobStageSeconds    *prometheus.HistogramVec
	RecordsTotal       *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	JournalActive      prometheus.Gauge
	JournaledJobs      prometheus.Counter
	ContactCacheHits   prometheus.Counter
	ContactCacheMisses prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// NewTrackerMetrics initializes and registers the Prometheus metrics.
func NewTrackerMetrics() *TrackerMetrics {
	return &TrackerMetrics{
		JobsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "display_watch",
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Total number of accepted job submissions.",
		}),
		JobsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "display_watch",
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total number of finished jobs by terminal status.",
		}, []string{"status"}), // status: completed, failed
		JobStageSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "display_watch",
			Subsystem: "jobs",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}), // stage: load, diff, filter, artifacts, persist
		RecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "display_watch",
			Subsystem: "jobs",
			Name:      "records_total",
			Help:      "Total change records produced, by filter outcome.",
		}, []string{"outcome"}), // outcome: kept, hidden
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "display_watch",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current number of entries on the job stream.",
		}),
		JournalActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "display_watch",
			Subsystem: "queue",
			Name:      "journal_active_gauge",
			Help:      "Indicates if submissions are being journaled locally (1 while the queue is unreachable, 0 otherwise).",
		}),
		JournaledJobs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "display_watch",
			Subsystem: "queue",
			Name:      "journaled_jobs_total",
			Help:      "Total number of submissions written to the local journal instead of the queue.",
		}),
		ContactCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "display_watch",
			Subsystem: "contacts",
			Name:      "cache_hits_total",
			Help:      "Total number of contact cache hits.",
		}),
		ContactCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "display_watch",
			Subsystem: "contacts",
			Name:      "cache_misses_total",
			Help:      "Total number of contact cache misses.",
		}),
		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "display_watch",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Total notification deliveries by outcome.",
		}, []string{"outcome"}), // outcome: sent, failed
	}
}
