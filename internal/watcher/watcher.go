package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/daimoniac/pkgwatch/internal/config"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// Watcher periodically schedules maintainer refreshes
type Watcher interface {
	// Start begins the continuous discovery loop
	Start(ctx context.Context) error

	// Discover performs a single discovery cycle
	Discover(ctx context.Context) error
}

// Subscriptions lists every stored subscription.
type Subscriptions interface {
	ListAllSubscriptions(ctx context.Context) ([]types.Subscription, error)
}

// RefreshHistory reports when an identifier was last refreshed.
type RefreshHistory interface {
	LastRefreshTime(ctx context.Context, identifier string, repo string) (*time.Time, error)
}

// Pruner drops cache rows older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Config contains configuration for the watcher
type Config struct {
	PollInterval    time.Duration
	RefreshInterval time.Duration // used for subscriptions without a settings entry
	Retention       time.Duration
	PruneInterval   time.Duration
}

// target is one identifier due for consideration in a discovery cycle.
type target struct {
	identifier string
	repo       string
	policy     string
	interval   time.Duration
	origin     string
}

// watcherImpl implements the Watcher interface
type watcherImpl struct {
	settings      *config.Settings
	subscriptions Subscriptions
	history       RefreshHistory
	pruner        Pruner
	taskQueue     queue.TaskQueue
	config        Config
	logger        *slog.Logger
	now           func() time.Time
	lastPrune     time.Time
}

// NewWatcher creates a new refresh scheduler
func NewWatcher(
	settings *config.Settings,
	subscriptions Subscriptions,
	history RefreshHistory,
	pruner Pruner,
	taskQueue queue.TaskQueue,
	cfg Config,
	logger *slog.Logger,
) Watcher {
	return newWatcher(settings, subscriptions, history, pruner, taskQueue, cfg, logger)
}

func newWatcher(
	settings *config.Settings,
	subscriptions Subscriptions,
	history RefreshHistory,
	pruner Pruner,
	taskQueue queue.TaskQueue,
	cfg Config,
	logger *slog.Logger,
) *watcherImpl {
	if settings == nil {
		settings = &config.Settings{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 6 * time.Hour
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = 24 * time.Hour
	}
	return &watcherImpl{
		settings:      settings,
		subscriptions: subscriptions,
		history:       history,
		pruner:        pruner,
		taskQueue:     taskQueue,
		config:        cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Start begins the continuous discovery loop
func (w *watcherImpl) Start(ctx context.Context) error {
	w.logger.Info("starting refresh watcher",
		"poll_interval", w.config.PollInterval.String(),
		"refresh_interval", w.config.RefreshInterval.String(),
		"retention", w.config.Retention.String())

	w.cycle(ctx)

	// wait for the poll interval after each cycle completes
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("refresh watcher shutting down")
			return ctx.Err()
		case <-time.After(w.config.PollInterval):
			w.cycle(ctx)
		}
	}
}

func (w *watcherImpl) cycle(ctx context.Context) {
	if err := w.Discover(ctx); err != nil {
		w.logger.Error("discovery cycle failed", "error", err.Error())
	}
	if err := w.maybePrune(ctx); err != nil {
		w.logger.Error("cache prune failed", "error", err.Error())
	}
}

// Discover performs a single discovery cycle
func (w *watcherImpl) Discover(ctx context.Context) error {
	w.logger.Info("starting discovery cycle")
	metrics := observability.GetMetrics()

	targets, err := w.targets(ctx)
	if err != nil {
		metrics.DiscoveryErrors.Inc()
		return fmt.Errorf("failed to enumerate maintainers: %w", err)
	}

	w.logger.Info("discovered maintainers", "count", len(targets))
	metrics.MaintainersDiscovered.Add(float64(len(targets)))

	enqueued := 0
	for _, t := range targets {
		ok, err := w.processTarget(ctx, t)
		if err != nil {
			metrics.DiscoveryErrors.Inc()
			w.logger.Error("failed to schedule refresh",
				"identifier", t.identifier,
				"error", err.Error())
			continue
		}
		if ok {
			enqueued++
		}
	}

	w.logger.Info("discovery cycle completed", "enqueued", enqueued)
	return nil
}

// targets merges settings entries and subscriptions, settings first.
func (w *watcherImpl) targets(ctx context.Context) ([]target, error) {
	seen := make(map[string]bool)
	var out []target

	for _, m := range w.settings.Maintainers {
		id := m.ResolvedIdentifier()
		if seen[id] {
			continue
		}
		seen[id] = true

		interval, err := w.settings.GetRefreshInterval(id)
		if err != nil {
			w.logger.Warn("failed to parse refresh interval, using default",
				"identifier", id,
				"default", w.config.RefreshInterval.String(),
				"error", err.Error())
			interval = w.config.RefreshInterval
		}
		t := target{identifier: id, repo: m.Repo, interval: interval, origin: "settings"}
		if p := w.settings.GetPolicyFor(id); p != nil {
			t.policy = p.Expression
		}
		out = append(out, t)
	}

	if w.subscriptions != nil {
		subs, err := w.subscriptions.ListAllSubscriptions(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range subs {
			if seen[s.Email] {
				continue
			}
			seen[s.Email] = true
			t := target{identifier: s.Email, interval: w.config.RefreshInterval, origin: "subscription"}
			if p := w.settings.Defaults.Policy; p != nil {
				t.policy = p.Expression
			}
			out = append(out, t)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].identifier < out[j].identifier })
	return out, nil
}

// shouldRefresh decides from the cache history whether a target is due
func (w *watcherImpl) shouldRefresh(ctx context.Context, t target) (bool, string, error) {
	if w.history == nil {
		return true, "no refresh history available", nil
	}

	last, err := w.history.LastRefreshTime(ctx, t.identifier, "")
	if err != nil {
		return false, "", fmt.Errorf("failed to check refresh history: %w", err)
	}
	if last == nil {
		return true, "never refreshed", nil
	}

	since := w.now().Sub(*last)
	if since >= t.interval {
		return true, fmt.Sprintf("refresh interval elapsed (%v since last refresh)", since.Round(time.Second)), nil
	}
	return false, fmt.Sprintf("refreshed %v ago", since.Round(time.Second)), nil
}

// processTarget enqueues a refresh for t when it is due
func (w *watcherImpl) processTarget(ctx context.Context, t target) (bool, error) {
	due, reason, err := w.shouldRefresh(ctx, t)
	if err != nil {
		w.logger.Error("failed to determine refresh necessity, enqueuing to be safe",
			"identifier", t.identifier,
			"error", err.Error())
		due = true
		reason = "error checking refresh state"
	}

	if !due {
		w.logger.Debug("skipping refresh",
			"identifier", t.identifier,
			"reason", reason,
			"refresh_interval", t.interval.String())
		return false, nil
	}

	task := queue.NewRefreshTask(t.identifier, t.repo, types.NotificationScheduled)
	task.Policy = t.policy

	ok, err := w.taskQueue.Enqueue(ctx, task)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue task: %w", err)
	}
	if !ok {
		w.logger.Debug("refresh already pending", "identifier", t.identifier)
		return false, nil
	}

	w.logger.Debug("enqueued refresh task",
		"identifier", t.identifier,
		"task_id", task.ID,
		"origin", t.origin,
		"reason", reason)
	return true, nil
}

// maybePrune runs the retention prune at most once per prune interval
func (w *watcherImpl) maybePrune(ctx context.Context) error {
	if w.pruner == nil || w.config.Retention <= 0 {
		return nil
	}
	now := w.now()
	if !w.lastPrune.IsZero() && now.Sub(w.lastPrune) < w.config.PruneInterval {
		return nil
	}
	w.lastPrune = now

	removed, err := w.pruner.Prune(ctx, w.config.Retention)
	if err != nil {
		return err
	}
	w.logger.Info("cache pruned",
		"removed", removed,
		"retention", w.config.Retention.String())
	return nil
}
