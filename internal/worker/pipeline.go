package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/policy"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// Pipeline orchestrates the refresh workflow for one maintainer
type Pipeline struct {
	worker *RefreshWorker
	logger *slog.Logger
}

// NewPipeline creates a new pipeline instance
func NewPipeline(worker *RefreshWorker, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		worker: worker,
		logger: logger,
	}
}

// Execute runs refresh, policy evaluation and notification recording
func (p *Pipeline) Execute(ctx context.Context, task *queue.RefreshTask) error {
	startTime := time.Now()

	p.logger.Info("starting refresh workflow",
		"task_id", task.ID,
		"identifier", task.Identifier,
		"reason", task.Reason)

	if err := p.validateDependencies(); err != nil {
		return err
	}

	// Phase 1: Refresh
	outdated, refreshDuration, err := p.refreshPhase(ctx, task)
	if err != nil {
		return err
	}

	// Phase 2: Policy Evaluation
	decision, err := p.policyPhase(ctx, task, outdated)
	if err != nil {
		return err
	}

	// Phase 3: Persistence
	notification, err := p.persistencePhase(ctx, task, decision)
	if err != nil {
		return err
	}

	p.logCompletion(task, startTime, refreshDuration, decision, notification)
	return nil
}

// validateDependencies ensures all required components are configured
func (p *Pipeline) validateDependencies() error {
	if p.worker.checker == nil {
		return fmt.Errorf("package checker is not configured")
	}
	if p.worker.policies == nil {
		return fmt.Errorf("policy set is not configured")
	}
	if p.worker.notifications == nil {
		return fmt.Errorf("notification store is not configured")
	}
	return nil
}

// refreshPhase forces a fresh merge for the maintainer
func (p *Pipeline) refreshPhase(ctx context.Context, task *queue.RefreshTask) ([]types.PackageRecord, time.Duration, error) {
	start := time.Now()
	p.logger.Debug("refreshing packages", "identifier", task.Identifier, "repo", task.Repo)

	outdated, err := p.worker.checker.GetOutdatedPackages(ctx, task.Identifier, task.Repo, true)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to refresh packages: %w", err)
	}

	duration := time.Since(start)
	p.logger.Info("packages refreshed",
		"identifier", task.Identifier,
		"outdated", len(outdated),
		"duration", duration)
	return outdated, duration, nil
}

// policyPhase selects the outdated packages worth a notification
func (p *Pipeline) policyPhase(ctx context.Context, task *queue.RefreshTask, outdated []types.PackageRecord) (*policy.Decision, error) {
	engine, err := p.worker.policies.For(task.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if task.Policy != "" {
		p.logger.Debug("using maintainer-specific policy",
			"identifier", task.Identifier,
			"expression", engine.Expression())
	}

	decision, err := engine.Evaluate(ctx, task.Identifier, outdated)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	p.logger.Info("policy evaluation completed",
		"identifier", task.Identifier,
		"outdated", decision.OutdatedCount,
		"notify", decision.NotifiedCount(),
		"reason", decision.Reason)
	return decision, nil
}

// persistencePhase records the notification history row
func (p *Pipeline) persistencePhase(ctx context.Context, task *queue.RefreshTask, decision *policy.Decision) (*types.Notification, error) {
	notification := buildNotification(task, decision, p.worker.now())

	if err := p.worker.notifications.RecordNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to record notification: %w", err)
	}

	observability.GetMetrics().NotificationsSent.WithLabelValues(notification.Kind).Inc()
	return notification, nil
}

// logCompletion emits the structured notification event
func (p *Pipeline) logCompletion(task *queue.RefreshTask, startTime time.Time, refreshDuration time.Duration, decision *policy.Decision, n *types.Notification) {
	names := make([]string, 0, len(decision.Notify))
	for _, rec := range decision.Notify {
		names = append(names, rec.Name)
	}

	p.logger.Info("refresh workflow completed",
		"task_id", task.ID,
		"identifier", task.Identifier,
		"kind", n.Kind,
		"outdated_count", n.OutdatedCount,
		"notified_count", n.NotifiedCount,
		"packages", names,
		"refresh_duration", refreshDuration,
		"total_duration", time.Since(startTime))
}
