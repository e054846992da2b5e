// Package checker answers package queries for a maintainer, serving cached
// results when they are fresh and refreshing them from both upstreams otherwise.
package checker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/daimoniac/pkgwatch/internal/merger"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/statestore"
	"github.com/daimoniac/pkgwatch/internal/types"
	"github.com/daimoniac/pkgwatch/internal/version"
)

// DefaultFreshness is how long cached records are served without a refresh.
const DefaultFreshness = 6 * time.Hour

// DefaultDistributionRepos are the aggregator repositories backed by the registry.
var DefaultDistributionRepos = []string{"altsisyphus", "altlinux"}

// Aggregator fetches a maintainer's projects from the aggregator.
type Aggregator interface {
	FetchByMaintainer(ctx context.Context, identifier, repo string) []types.ProjectGroup
}

// Registry fetches a maintainer's outdated packages and maps names onto the registry.
type Registry interface {
	PackagesByMaintainer(ctx context.Context, nickname string) []types.RegistryPackage
	FindEquivalentName(ctx context.Context, aggregatorName, branch string) (string, bool)
}

// Checker orchestrates cache lookups, upstream fetches, merging and persistence.
type Checker struct {
	aggregator Aggregator
	registry   Registry
	store      statestore.CacheStore
	merger     *merger.Merger
	logger     *slog.Logger

	freshness    time.Duration
	now          func() time.Time
	nicknames    map[string]string
	cmp          version.Comparator
	distribution map[string]bool
	branch       string
}

// Option configures a Checker.
type Option func(*Checker)

// WithFreshness sets the cache freshness window. Non-positive values are ignored.
func WithFreshness(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithNowFunc sets the clock used for refresh timing.
func WithNowFunc(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// WithNicknameMapping sets explicit identifier to registry nickname mappings.
func WithNicknameMapping(mapping map[string]string) Option {
	return func(c *Checker) {
		c.nicknames = mapping
	}
}

// WithComparator sets the version comparator used by the merger.
func WithComparator(cmp version.Comparator) Option {
	return func(c *Checker) {
		if cmp != nil {
			c.cmp = cmp
		}
	}
}

// WithDistributionRepos sets which repositories get registry name enrichment.
func WithDistributionRepos(repos []string) Option {
	return func(c *Checker) {
		c.distribution = make(map[string]bool, len(repos))
		for _, r := range repos {
			c.distribution[r] = true
		}
	}
}

// WithBranch sets the registry branch used for name enrichment.
func WithBranch(branch string) Option {
	return func(c *Checker) {
		c.branch = branch
	}
}

// New creates a Checker.
func New(agg Aggregator, reg Registry, store statestore.CacheStore, logger *slog.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Checker{
		aggregator: agg,
		registry:   reg,
		store:      store,
		logger:     logger.With("component", "checker"),
		freshness:  DefaultFreshness,
		now:        time.Now,
		cmp:        version.Default,
	}
	WithDistributionRepos(DefaultDistributionRepos)(c)

	for _, opt := range opts {
		opt(c)
	}

	c.merger = merger.New(c.cmp, c.logger)
	return c
}

// GetPackages returns the merged package list for identifier. Fresh cached
// records are returned without contacting either upstream unless forceRefresh
// is set. Upstream failures degrade to partial data; only store failures are errors.
func (c *Checker) GetPackages(ctx context.Context, identifier, repo string, forceRefresh bool) ([]types.PackageRecord, error) {
	metrics := observability.GetMetrics()

	if !forceRefresh {
		records, ok, err := c.store.GetIfFresh(ctx, identifier, c.freshness, repo)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache for %s: %w", identifier, err)
		}
		if ok {
			metrics.CacheHits.Inc()
			c.logger.Debug("serving cached packages",
				"identifier", identifier,
				"repo", repo,
				"records", len(records))
			return records, nil
		}
		metrics.CacheMisses.Inc()
		metrics.RefreshTotal.WithLabelValues("miss").Inc()
	} else {
		metrics.RefreshTotal.WithLabelValues("forced").Inc()
	}

	type outcome struct {
		records []types.PackageRecord
		err     error
	}
	done := make(chan outcome, 1)

	// The refresh outlives an abandoned request and still populates the cache.
	go func() {
		records, err := c.refresh(context.WithoutCancel(ctx), identifier)
		if err != nil {
			metrics.RefreshFailed.Inc()
		}
		done <- outcome{records: records, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return filterByRepo(res.records, repo), nil
	case <-ctx.Done():
		c.logger.Debug("request abandoned, refresh continues in background",
			"identifier", identifier)
		return nil, ctx.Err()
	}
}

// refresh fetches both upstreams concurrently, merges, enriches and stores the full set.
func (c *Checker) refresh(ctx context.Context, identifier string) ([]types.PackageRecord, error) {
	start := c.now()
	metrics := observability.GetMetrics()

	var (
		wg     sync.WaitGroup
		groups []types.ProjectGroup
		regs   []types.RegistryPackage
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		groups = c.aggregator.FetchByMaintainer(ctx, identifier, "")
	}()

	nickname, hasNickname := types.NicknameForIdentifier(identifier, c.nicknames)
	if hasNickname {
		wg.Add(1)
		go func() {
			defer wg.Done()
			regs = c.registry.PackagesByMaintainer(ctx, nickname)
		}()
	} else {
		c.logger.Debug("no registry nickname for identifier, skipping registry", "identifier", identifier)
	}

	wg.Wait()

	records := c.merger.Merge(groups, regs)
	c.enrich(ctx, records)

	if err := c.store.ReplaceAll(ctx, identifier, records); err != nil {
		c.logger.Error("failed to store refreshed packages",
			"identifier", identifier,
			"error", err.Error())
		return nil, fmt.Errorf("failed to store packages for %s: %w", identifier, err)
	}

	preferred := 0
	for _, r := range records {
		if r.PrefersRegistry {
			preferred++
		}
	}
	synthesized := countRegistryOnly(groups, regs)

	metrics.CacheWrites.Inc()
	metrics.MergedRecords.Add(float64(len(records)))
	metrics.RegistryPreferred.Add(float64(preferred))
	metrics.RegistrySynthesized.Add(float64(synthesized))
	duration := c.now().Sub(start)
	metrics.RefreshDuration.Observe(duration.Seconds())

	c.logger.Info("refreshed packages",
		"identifier", identifier,
		"nickname", nickname,
		"aggregator_projects", len(groups),
		"registry_packages", len(regs),
		"records", len(records),
		"registry_preferred", preferred,
		"duration", duration)

	return records, nil
}

// enrich annotates distribution records the registry did not report with their registry name.
func (c *Checker) enrich(ctx context.Context, records []types.PackageRecord) {
	metrics := observability.GetMetrics()

	for i := range records {
		rec := &records[i]
		if rec.RegistryPackageName != "" || !c.distribution[rec.Repository] {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		name, ok := c.registry.FindEquivalentName(ctx, rec.Name, c.branch)
		if !ok {
			metrics.EnrichmentLookups.WithLabelValues("missing").Inc()
			c.logger.Debug("no registry name found",
				"name", rec.Name,
				"repository", rec.Repository)
			continue
		}
		metrics.EnrichmentLookups.WithLabelValues("found").Inc()
		rec.RegistryPackageName = name
	}
}

// GetOutdatedPackages returns only the outdated records of GetPackages.
func (c *Checker) GetOutdatedPackages(ctx context.Context, identifier, repo string, forceRefresh bool) ([]types.PackageRecord, error) {
	records, err := c.GetPackages(ctx, identifier, repo, forceRefresh)
	if err != nil {
		return nil, err
	}

	outdated := make([]types.PackageRecord, 0, len(records))
	for _, r := range records {
		if r.IsOutdated() {
			outdated = append(outdated, r)
		}
	}
	return outdated, nil
}

// GetStats counts identifier's packages by status.
func (c *Checker) GetStats(ctx context.Context, identifier, repo string) (*types.Stats, error) {
	records, err := c.GetPackages(ctx, identifier, repo, false)
	if err != nil {
		return nil, err
	}

	stats := &types.Stats{Identifier: identifier, Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case types.StatusOutdated:
			stats.Outdated++
		case types.StatusNewest:
			stats.Newest++
		default:
			stats.Other++
		}
	}

	last, err := c.store.LastRefreshTime(ctx, identifier, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to read last refresh for %s: %w", identifier, err)
	}
	stats.LastCheck = last

	return stats, nil
}

// Prune removes cached records older than retention.
func (c *Checker) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := c.store.PruneOlderThan(ctx, retention)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	observability.GetMetrics().CachePruned.Add(float64(removed))
	c.logger.Info("pruned cache", "retention", retention, "removed", removed)
	return removed, nil
}

// Freshness returns the cache freshness window.
func (c *Checker) Freshness() time.Duration {
	return c.freshness
}

// countRegistryOnly counts distinct registry names with no aggregator project.
func countRegistryOnly(groups []types.ProjectGroup, regs []types.RegistryPackage) int {
	known := make(map[string]bool, len(groups))
	for _, g := range groups {
		known[g.ProjectName] = true
	}
	counted := make(map[string]bool)
	for _, reg := range regs {
		if reg.AggregatorName == "" || known[reg.AggregatorName] || counted[reg.AggregatorName] {
			continue
		}
		counted[reg.AggregatorName] = true
	}
	return len(counted)
}

func filterByRepo(records []types.PackageRecord, repo string) []types.PackageRecord {
	if repo == "" {
		return records
	}
	filtered := make([]types.PackageRecord, 0, len(records))
	for _, r := range records {
		if r.Repository == repo {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
