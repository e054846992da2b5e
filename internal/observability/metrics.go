package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Queue metrics
	QueueDepth     prometheus.Gauge
	QueueEnqueued  prometheus.Counter
	QueueDequeued  prometheus.Counter
	QueueCompleted prometheus.Counter
	QueueFailed    prometheus.Counter

	// Upstream metrics, labelled by upstream (aggregator, registry)
	UpstreamRequests        *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamRecords         *prometheus.CounterVec
	RateLimitWait           prometheus.Histogram

	// Cache metrics
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CachePruned     prometheus.Counter
	CacheWrites     prometheus.Counter
	RefreshTotal    *prometheus.CounterVec
	RefreshFailed   prometheus.Counter
	RefreshDuration prometheus.Histogram

	// Merge metrics
	MergedRecords       prometheus.Counter
	RegistryPreferred   prometheus.Counter
	RegistrySynthesized prometheus.Counter
	EnrichmentLookups   *prometheus.CounterVec

	// Policy metrics
	PolicyNotified prometheus.Counter
	PolicySkipped  prometheus.Counter

	// Discovery metrics
	MaintainersDiscovered prometheus.Counter
	DiscoveryErrors       prometheus.Counter

	// Worker metrics
	WorkerTasksProcessed prometheus.Counter
	WorkerErrors         prometheus.Counter
	NotificationsSent    *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "pkgwatch_queue_depth",
				Help: "Current number of refresh tasks in the queue",
			}),
			QueueEnqueued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_queue_enqueued_total",
				Help: "Total number of refresh tasks enqueued",
			}),
			QueueDequeued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_queue_dequeued_total",
				Help: "Total number of refresh tasks dequeued",
			}),
			QueueCompleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_queue_completed_total",
				Help: "Total number of refresh tasks completed successfully",
			}),
			QueueFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_queue_failed_total",
				Help: "Total number of refresh tasks that failed",
			}),

			UpstreamRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgwatch_upstream_requests_total",
					Help: "Total number of upstream HTTP requests by upstream and outcome",
				},
				[]string{"upstream", "outcome"},
			),
			UpstreamRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pkgwatch_upstream_request_duration_seconds",
					Help:    "Duration of upstream HTTP requests in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
				},
				[]string{"upstream"},
			),
			UpstreamRecords: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgwatch_upstream_records_total",
					Help: "Total number of records returned per upstream",
				},
				[]string{"upstream"},
			),
			RateLimitWait: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "pkgwatch_aggregator_rate_limit_wait_seconds",
				Help:    "Time spent waiting on the aggregator rate gate",
				Buckets: prometheus.LinearBuckets(0, 0.25, 8),
			}),

			CacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_cache_hits_total",
				Help: "Total number of package lists served from cache",
			}),
			CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_cache_misses_total",
				Help: "Total number of cache lookups that required a refresh",
			}),
			CachePruned: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_cache_pruned_rows_total",
				Help: "Total number of cache rows removed by pruning",
			}),
			CacheWrites: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_cache_writes_total",
				Help: "Total number of full cache replacements",
			}),
			RefreshTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgwatch_refresh_total",
					Help: "Total number of package list refreshes by trigger",
				},
				[]string{"trigger"}, // miss, forced
			),
			RefreshFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_refresh_failed_total",
				Help: "Total number of refreshes that failed to persist",
			}),
			RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "pkgwatch_refresh_duration_seconds",
				Help:    "Duration of fetch, merge and store in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			}),

			MergedRecords: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_merged_records_total",
				Help: "Total number of records produced by merging",
			}),
			RegistryPreferred: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_registry_preferred_total",
				Help: "Total number of merged records where the registry version won",
			}),
			RegistrySynthesized: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_registry_synthesized_total",
				Help: "Total number of records known only to the registry",
			}),
			EnrichmentLookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgwatch_enrichment_lookups_total",
					Help: "Total number of registry name lookups by result",
				},
				[]string{"result"}, // found, missing
			),

			PolicyNotified: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_policy_notified_total",
				Help: "Total number of outdated packages selected by the notification policy",
			}),
			PolicySkipped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_policy_skipped_total",
				Help: "Total number of outdated packages filtered out by the notification policy",
			}),

			MaintainersDiscovered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_maintainers_discovered_total",
				Help: "Total number of maintainer identifiers discovered for refresh",
			}),
			DiscoveryErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_discovery_errors_total",
				Help: "Total number of discovery errors",
			}),

			WorkerTasksProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_worker_tasks_processed_total",
				Help: "Total number of tasks processed by workers",
			}),
			WorkerErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgwatch_worker_errors_total",
				Help: "Total number of worker errors",
			}),
			NotificationsSent: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgwatch_notifications_sent_total",
					Help: "Total number of notifications recorded by kind",
				},
				[]string{"kind"},
			),
		}
	})
	return metricsInstance
}
