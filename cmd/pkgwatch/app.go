package main

import (
	"fmt"
	"log/slog"

	"github.com/daimoniac/pkgwatch/internal/aggregator"
	"github.com/daimoniac/pkgwatch/internal/checker"
	"github.com/daimoniac/pkgwatch/internal/config"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/policy"
	"github.com/daimoniac/pkgwatch/internal/registry"
	"github.com/daimoniac/pkgwatch/internal/statestore"
	"github.com/daimoniac/pkgwatch/internal/version"
)

// app holds the components shared by every command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *statestore.SQLiteStore
	aggregator *aggregator.Client
	registry   *registry.Client
	checker    *checker.Checker
}

func newApp(settingsPath string) (*app, error) {
	cfg, err := config.LoadFrom(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel)

	cmp, err := version.ForMode(cfg.VersionCompare)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing state store",
		"path", cfg.Cache.SQLitePath)
	store, err := statestore.NewSQLiteStore(cfg.Cache.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
	}
	logger.Debug("state store initialized",
		"schema_version", store.SchemaVersion())

	aggClient := aggregator.NewClient(aggregator.Config{
		BaseURL:   cfg.Aggregator.BaseURL,
		Timeout:   cfg.Aggregator.Timeout,
		RateLimit: cfg.Aggregator.RateLimit,
		UserAgent: cfg.UserAgent,
	}, logger, aggregator.WithComparator(cmp))

	regClient := registry.NewClient(registry.Config{
		BaseURL:   cfg.Registry.BaseURL,
		Timeout:   cfg.Registry.Timeout,
		Branch:    cfg.Registry.Branch,
		UserAgent: cfg.UserAgent,
	}, logger)

	pkgChecker := checker.New(aggClient, regClient, store, logger,
		checker.WithFreshness(cfg.Cache.Freshness),
		checker.WithComparator(cmp),
		checker.WithNicknameMapping(cfg.Settings.GetNicknameMapping()),
		checker.WithDistributionRepos(cfg.Settings.GetDistributionRepos()),
		checker.WithBranch(cfg.Registry.Branch),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		aggregator: aggClient,
		registry:   regClient,
		checker:    pkgChecker,
	}, nil
}

// policies builds the policy set from the settings default.
func (a *app) policies() (*policy.Set, error) {
	var def policy.PolicyConfig
	if p := a.cfg.Settings.Defaults.Policy; p != nil {
		def.Expression = p.Expression
	}
	set, err := policy.NewSet(a.logger, def)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	return set, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing state store",
			"error", err.Error())
	}
}
