package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/daimoniac/pkgwatch/internal/statestore"
)

var (
	dbCollectorOnce     sync.Once
	dbCollectorInstance *DatabaseCollector
)

// DatabaseCollector reads store totals when /metrics is scraped.
type DatabaseCollector struct {
	store  statestore.StateStoreQuery
	logger *slog.Logger
	now    func() time.Time

	cachedRecordsDesc *prometheus.Desc
	identifiersDesc   *prometheus.Desc
	subscriptionsDesc *prometheus.Desc
	notificationsDesc *prometheus.Desc
	oldestRefreshDesc *prometheus.Desc
	collectErrorsDesc *prometheus.Desc

	mu            sync.Mutex
	collectErrors int
}

// NewDatabaseCollector creates a new database metrics collector
func NewDatabaseCollector(store statestore.StateStoreQuery, logger *slog.Logger) *DatabaseCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatabaseCollector{
		store:  store,
		logger: logger,
		now:    time.Now,
		cachedRecordsDesc: prometheus.NewDesc(
			"pkgwatch_cached_records",
			"Current number of cached package records by status",
			[]string{"status"},
			nil,
		),
		identifiersDesc: prometheus.NewDesc(
			"pkgwatch_cached_identifiers",
			"Current number of maintainer identifiers with a cached refresh",
			nil,
			nil,
		),
		subscriptionsDesc: prometheus.NewDesc(
			"pkgwatch_subscriptions",
			"Current number of maintainer subscriptions",
			nil,
			nil,
		),
		notificationsDesc: prometheus.NewDesc(
			"pkgwatch_notification_history_rows",
			"Current number of notification history rows",
			nil,
			nil,
		),
		oldestRefreshDesc: prometheus.NewDesc(
			"pkgwatch_cache_oldest_refresh_age_seconds",
			"Age of the least recently refreshed identifier",
			nil,
			nil,
		),
		collectErrorsDesc: prometheus.NewDesc(
			"pkgwatch_database_collect_errors_total",
			"Total number of failed database metric collections",
			nil,
			nil,
		),
	}
}

// RegisterDatabaseCollector registers the database collector exactly once
func RegisterDatabaseCollector(store statestore.StateStoreQuery, logger *slog.Logger) {
	dbCollectorOnce.Do(func() {
		dbCollectorInstance = NewDatabaseCollector(store, logger)
		prometheus.MustRegister(dbCollectorInstance)
		logger.Info("database metrics collector registered")
	})
}

// Describe sends the metric descriptors to the provided channel
func (c *DatabaseCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cachedRecordsDesc
	ch <- c.identifiersDesc
	ch <- c.subscriptionsDesc
	ch <- c.notificationsDesc
	ch <- c.oldestRefreshDesc
	ch <- c.collectErrorsDesc
}

// Collect queries the store and sends current metrics to the provided channel
func (c *DatabaseCollector) Collect(ch chan<- prometheus.Metric) {
	// Bounded so a busy database cannot block /metrics
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	summary, err := c.store.CacheSummary(ctx)
	if err != nil {
		c.mu.Lock()
		c.collectErrors++
		c.mu.Unlock()
		c.logger.Warn("failed to collect database metrics", "error", err.Error())
	} else {
		for status, count := range summary.RecordsByStatus {
			ch <- prometheus.MustNewConstMetric(c.cachedRecordsDesc, prometheus.GaugeValue, float64(count), string(status))
		}
		ch <- prometheus.MustNewConstMetric(c.identifiersDesc, prometheus.GaugeValue, float64(summary.Identifiers))
		ch <- prometheus.MustNewConstMetric(c.subscriptionsDesc, prometheus.GaugeValue, float64(summary.Subscriptions))
		ch <- prometheus.MustNewConstMetric(c.notificationsDesc, prometheus.GaugeValue, float64(summary.Notifications))

		age := 0.0
		if summary.OldestRefreshedAt != nil {
			age = c.now().Sub(*summary.OldestRefreshedAt).Seconds()
		}
		ch <- prometheus.MustNewConstMetric(c.oldestRefreshDesc, prometheus.GaugeValue, age)
	}

	c.mu.Lock()
	errorsTotal := c.collectErrors
	c.mu.Unlock()
	ch <- prometheus.MustNewConstMetric(c.collectErrorsDesc, prometheus.CounterValue, float64(errorsTotal))
}
