package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/daimoniac/pkgwatch/internal/api"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/watcher"
	"github.com/daimoniac/pkgwatch/internal/worker"
)

func serve(ctx context.Context, settingsPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(settingsPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger
	logger.Info("starting pkgwatch",
		"settings_path", cfg.SettingsPath,
		"maintainers", len(cfg.Settings.Maintainers),
		"log_level", cfg.Observability.LogLevel)

	_ = observability.GetMetrics()
	logger.Debug("metrics initialized",
		"metrics_port", cfg.Observability.MetricsPort)

	healthChecker := observability.NewHealthChecker(logger)

	healthChecker.RegisterComponent("config")
	healthChecker.RegisterComponent("queue")
	healthChecker.RegisterComponent("worker")
	healthChecker.RegisterComponent("watcher")
	healthChecker.AddCheck("database", a.store.Ping)
	healthChecker.AddStatusCheck("aggregator", func(ctx context.Context) (observability.ComponentStatus, string) {
		return observability.BreakerStatus(a.aggregator.BreakerStates()), ""
	})
	healthChecker.AddDetails("aggregator", a.aggregator.BreakerStates)
	healthChecker.AddStatusCheck("registry", func(ctx context.Context) (observability.ComponentStatus, string) {
		return observability.BreakerStatus(a.registry.BreakerStates()), ""
	})
	healthChecker.AddDetails("registry", a.registry.BreakerStates)

	healthChecker.UpdateComponentHealth("config", observability.StatusHealthy, "")

	logger.Debug("health checker initialized",
		"health_port", cfg.Observability.HealthCheckPort)

	obsServer := observability.NewServer(
		cfg.Observability.MetricsPort,
		cfg.Observability.HealthCheckPort,
		logger,
		healthChecker,
	)

	go func() {
		if err := obsServer.Start(ctx); err != nil {
			logger.Error("observability server error",
				"error", err.Error())
		}
	}()
	go healthChecker.Run(ctx, 30*time.Second)

	logger.Debug("observability server started",
		"metrics_port", cfg.Observability.MetricsPort,
		"health_port", cfg.Observability.HealthCheckPort)

	policies, err := a.policies()
	if err != nil {
		return err
	}
	logger.Debug("policy engine initialized",
		"default_expression", policies.Default().Expression())

	logger.Debug("initializing task queue",
		"buffer_size", cfg.Queue.BufferSize)
	taskQueue := queue.NewInMemoryQueue(cfg.Queue.BufferSize)
	healthChecker.UpdateComponentHealth("queue", observability.StatusHealthy, "")

	logger.Debug("initializing refresh watcher",
		"poll_interval", cfg.Worker.PollInterval,
		"refresh_interval", cfg.Worker.RefreshInterval)
	refreshWatcher := watcher.NewWatcher(
		cfg.Settings,
		a.store,
		a.store,
		a.checker,
		taskQueue,
		watcher.Config{
			PollInterval:    cfg.Worker.PollInterval,
			RefreshInterval: cfg.Worker.RefreshInterval,
			Retention:       cfg.Cache.Retention,
		},
		logger,
	)
	healthChecker.UpdateComponentHealth("watcher", observability.StatusHealthy, "")

	logger.Debug("initializing worker",
		"concurrency", cfg.Worker.Concurrency,
		"retry_attempts", cfg.Worker.RetryAttempts,
		"retry_backoff", cfg.Worker.RetryBackoff)
	refreshWorker := worker.NewRefreshWorker(
		taskQueue,
		a.checker,
		policies,
		a.store,
		worker.Config{
			RetryAttempts: cfg.Worker.RetryAttempts,
			RetryBackoff:  cfg.Worker.RetryBackoff,
			Concurrency:   cfg.Worker.Concurrency,
		},
		logger,
	)
	healthChecker.UpdateComponentHealth("worker", observability.StatusHealthy, "")

	var apiServer *api.APIServer
	if cfg.API.Enabled {
		logger.Debug("initializing API server",
			"port", cfg.API.Port,
			"read_only", cfg.API.ReadOnly)
		apiServer = api.NewAPIServer(&cfg.API, api.Dependencies{
			Checker:    a.checker,
			Aggregator: a.aggregator,
			Registry:   a.registry,
			Store:      a.store,
			Queue:      taskQueue,
			Settings:   cfg.Settings,
			Retention:  cfg.Cache.Retention,
			Health:     healthChecker.HealthHandler(),
		}, logger)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Debug("starting refresh watcher")
		if err := refreshWatcher.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("refresh watcher error",
				"error", err.Error())
			errChan <- fmt.Errorf("refresh watcher error: %w", err)
		}
		logger.Debug("refresh watcher stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Debug("starting worker")
		if err := refreshWorker.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("worker error",
				"error", err.Error())
			errChan <- fmt.Errorf("worker error: %w", err)
		}
		logger.Debug("worker stopped")
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("API server listening",
				"port", cfg.API.Port)
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("API server error",
					"error", err.Error())
				errChan <- fmt.Errorf("API server error: %w", err)
			}
			logger.Debug("API server stopped")
		}()
	}

	logger.Info("all components started successfully")

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errChan:
		logger.Error("component error, initiating shutdown",
			"error", err.Error())
		cancel()
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// unblock the worker pool once the producers have stopped
	taskQueue.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	queueDepth, _ := taskQueue.GetQueueDepth(shutdownCtx)
	if queueDepth > 0 {
		logger.Warn("queue not empty at shutdown",
			"remaining_tasks", queueDepth)
	}

	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down observability server",
			"error", err.Error())
	}

	logger.Info("shutdown complete")
	return nil
}
