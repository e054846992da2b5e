// Package merger reconciles aggregator and registry views of a maintainer's packages.
package merger

import (
	"log/slog"
	"sort"

	"github.com/daimoniac/pkgwatch/internal/types"
	"github.com/daimoniac/pkgwatch/internal/version"
)

// Merger combines aggregator project groups with registry update reports.
type Merger struct {
	cmp       version.Comparator
	converter *types.RecordConverter
	logger    *slog.Logger
}

// New creates a Merger. A nil comparator means version.Default.
func New(cmp version.Comparator, logger *slog.Logger) *Merger {
	if cmp == nil {
		cmp = version.Default
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		cmp:       cmp,
		converter: types.NewRecordConverter(),
		logger:    logger.With("component", "merger"),
	}
}

// Merge is a convenience wrapper around New(cmp, slog.Default()).Merge.
func Merge(groups []types.ProjectGroup, regs []types.RegistryPackage, cmp version.Comparator) []types.PackageRecord {
	return New(cmp, nil).Merge(groups, regs)
}

// Merge flattens groups into records, enriches them with the deduplicated
// registry entries and synthesizes records for registry entries the aggregator
// does not know. The result holds each (name, repository) once, sorted.
func (m *Merger) Merge(groups []types.ProjectGroup, regs []types.RegistryPackage) []types.PackageRecord {
	var flat []types.PackageRecord

	for _, g := range groups {
		if g.ProjectName == "" {
			m.logger.Warn("skipping aggregator group without project name", "records", len(g.Records))
			continue
		}
		for _, rec := range g.Records {
			if rec.Repo == "" {
				m.logger.Warn("skipping aggregator record without repository", "project", g.ProjectName)
				continue
			}
			flat = append(flat, m.converter.FromRepoRecord(g.ProjectName, g.NewestVersion, rec))
		}
	}

	return m.reconcile(flat, regs)
}

// Remerge is a convenience wrapper around New(cmp, slog.Default()).Remerge.
func Remerge(records []types.PackageRecord, regs []types.RegistryPackage, cmp version.Comparator) []types.PackageRecord {
	return New(cmp, nil).Remerge(records, regs)
}

// Remerge applies registry entries to records that went through Merge before.
// A record that already prefers the registry keeps that preference, so its
// status and effective newest version do not change.
func (m *Merger) Remerge(records []types.PackageRecord, regs []types.RegistryPackage) []types.PackageRecord {
	flat := make([]types.PackageRecord, 0, len(records))
	for _, rec := range records {
		if rec.Name == "" || rec.Repository == "" {
			m.logger.Warn("skipping record without name or repository",
				"name", rec.Name,
				"repository", rec.Repository)
			continue
		}
		flat = append(flat, rec)
	}
	return m.reconcile(flat, regs)
}

// reconcile dedups records by key, first wins, then stamps, flags or
// synthesizes from the deduplicated registry entries.
func (m *Merger) reconcile(flat []types.PackageRecord, regs []types.RegistryPackage) []types.PackageRecord {
	records := make([]types.PackageRecord, 0, len(flat))
	index := make(map[types.RecordKey]int)
	byName := make(map[string][]int)

	for _, rec := range flat {
		key := rec.Key()
		if _, exists := index[key]; exists {
			m.logger.Debug("duplicate record, keeping first",
				"project", key.Name,
				"repository", key.Repository,
				"version", rec.InstalledVersion)
			continue
		}
		index[key] = len(records)
		byName[key.Name] = append(byName[key.Name], len(records))
		records = append(records, rec)
	}

	deduped := m.dedupRegistry(regs)

	for _, reg := range deduped {
		matches := byName[reg.AggregatorName]
		if len(matches) == 0 {
			records = append(records, m.converter.FromRegistryPackage(reg))
			m.logger.Debug("synthesized record from registry",
				"name", reg.AggregatorName,
				"registry_name", reg.RegistryName)
			continue
		}

		for _, i := range matches {
			rec := &records[i]
			m.converter.StampRegistry(rec, reg)

			rec.PrefersRegistry = rec.PrefersRegistry || m.prefersRegistry(*rec, reg)
			if rec.PrefersRegistry {
				rec.Status = types.StatusOutdated
			}

			if rec.InstalledVersion != reg.OldVersion {
				m.logger.Debug("installed version mismatch",
					"name", rec.Name,
					"repository", rec.Repository,
					"aggregator", rec.InstalledVersion,
					"registry", reg.OldVersion)
			}
		}
	}

	SortRecords(records)
	return records
}

// dedupRegistry keeps one entry per aggregator name: the one with the greatest NewVersion.
// Ties keep the earlier entry. Output follows first-seen order.
func (m *Merger) dedupRegistry(regs []types.RegistryPackage) []types.RegistryPackage {
	best := make(map[string]int)
	out := make([]types.RegistryPackage, 0, len(regs))

	for _, reg := range regs {
		if reg.AggregatorName == "" {
			m.logger.Warn("skipping registry entry without aggregator name", "registry_name", reg.RegistryName)
			continue
		}
		i, seen := best[reg.AggregatorName]
		if !seen {
			best[reg.AggregatorName] = len(out)
			out = append(out, reg)
			continue
		}
		if version.Greater(m.cmp, reg.NewVersion, out[i].NewVersion) {
			m.logger.Debug("replacing duplicate registry entry",
				"name", reg.AggregatorName,
				"old", out[i].NewVersion,
				"new", reg.NewVersion)
			out[i] = reg
		}
	}

	if len(out) != len(regs) {
		m.logger.Debug("deduplicated registry entries", "before", len(regs), "after", len(out))
	}
	return out
}

// prefersRegistry decides whether the registry's newest version overrides the aggregator's.
func (m *Merger) prefersRegistry(rec types.PackageRecord, reg types.RegistryPackage) bool {
	switch {
	case rec.Status != types.StatusOutdated:
		// the registry reports it outdated where the aggregator does not
		return true
	case rec.AggregatorNewestVersion == "":
		return true
	default:
		return version.Greater(m.cmp, reg.NewVersion, rec.AggregatorNewestVersion)
	}
}

// SortRecords orders records by name, then repository.
func SortRecords(records []types.PackageRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].Repository < records[j].Repository
	})
}

// SplitBySource partitions records into those whose newest version comes from
// the registry and those relying on the aggregator alone.
func SplitBySource(records []types.PackageRecord) (registry, aggregatorOnly []types.PackageRecord) {
	for _, rec := range records {
		if rec.PrefersRegistry {
			registry = append(registry, rec)
		} else {
			aggregatorOnly = append(aggregatorOnly, rec)
		}
	}
	return registry, aggregatorOnly
}
