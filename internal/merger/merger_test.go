package merger

import (
	"reflect"
	"testing"

	"github.com/daimoniac/pkgwatch/internal/types"
	"github.com/daimoniac/pkgwatch/internal/version"
)

func findRecord(records []types.PackageRecord, name, repo string) *types.PackageRecord {
	for i := range records {
		if records[i].Name == name && records[i].Repository == repo {
			return &records[i]
		}
	}
	return nil
}

func TestMerge_AliceScenario(t *testing.T) {
	groups := []types.ProjectGroup{
		{
			ProjectName:   "foo",
			NewestVersion: "2.0",
			Records: []types.RepoRecord{
				{Repo: "r1", Version: "1.0", Status: types.StatusOutdated},
				{Repo: "r1", Version: "2.0", Status: types.StatusNewest},
			},
		},
	}
	regs := []types.RegistryPackage{
		{AggregatorName: "foo", OldVersion: "1.0", NewVersion: "2.1", RegistryName: "foo-alt"},
	}

	records := Merge(groups, regs, version.Default)

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Name != "foo" || rec.Repository != "r1" {
		t.Errorf("key = (%s, %s), want (foo, r1)", rec.Name, rec.Repository)
	}
	if rec.InstalledVersion != "1.0" {
		t.Errorf("InstalledVersion = %q, want 1.0", rec.InstalledVersion)
	}
	if rec.AggregatorNewestVersion != "2.0" {
		t.Errorf("AggregatorNewestVersion = %q, want 2.0", rec.AggregatorNewestVersion)
	}
	if rec.RegistryNewestVersion != "2.1" || rec.RegistryPackageName != "foo-alt" {
		t.Errorf("registry fields = %q, %q", rec.RegistryNewestVersion, rec.RegistryPackageName)
	}
	if !rec.PrefersRegistry {
		t.Error("PrefersRegistry = false, want true")
	}
	if rec.Status != types.StatusOutdated {
		t.Errorf("Status = %q, want outdated", rec.Status)
	}
	if rec.EffectiveNewestVersion() != "2.1" {
		t.Errorf("EffectiveNewestVersion() = %q, want 2.1", rec.EffectiveNewestVersion())
	}
}

func TestMerge_DedupKeepsLexicallyGreater(t *testing.T) {
	regs := []types.RegistryPackage{
		{AggregatorName: "pkg", RegistryName: "pkg", OldVersion: "1.0", NewVersion: "1.10"},
		{AggregatorName: "pkg", RegistryName: "pkg", OldVersion: "1.0", NewVersion: "1.2"},
	}

	records := Merge(nil, regs, version.Default)

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].RegistryNewestVersion != "1.2" {
		t.Errorf("RegistryNewestVersion = %q, want 1.2 (string order)", records[0].RegistryNewestVersion)
	}

	// Semver ordering keeps 1.10 instead
	records = Merge(nil, regs, version.Semver{})
	if records[0].RegistryNewestVersion != "1.10" {
		t.Errorf("semver RegistryNewestVersion = %q, want 1.10", records[0].RegistryNewestVersion)
	}
}

func TestMerge_PrefersRegistryRules(t *testing.T) {
	tests := []struct {
		name          string
		status        types.Status
		aggNewest     string
		regNewest     string
		wantPrefers   bool
		wantStatus    types.Status
		wantEffective string
	}{
		{
			name:          "aggregator not outdated forces registry",
			status:        types.StatusNewest,
			aggNewest:     "2.0",
			regNewest:     "1.5",
			wantPrefers:   true,
			wantStatus:    types.StatusOutdated,
			wantEffective: "1.5",
		},
		{
			name:          "missing aggregator newest",
			status:        types.StatusOutdated,
			aggNewest:     "",
			regNewest:     "1.5",
			wantPrefers:   true,
			wantStatus:    types.StatusOutdated,
			wantEffective: "1.5",
		},
		{
			name:          "registry greater",
			status:        types.StatusOutdated,
			aggNewest:     "2.0",
			regNewest:     "2.1",
			wantPrefers:   true,
			wantStatus:    types.StatusOutdated,
			wantEffective: "2.1",
		},
		{
			name:          "aggregator greater",
			status:        types.StatusOutdated,
			aggNewest:     "3.0",
			regNewest:     "2.1",
			wantPrefers:   false,
			wantStatus:    types.StatusOutdated,
			wantEffective: "3.0",
		},
		{
			name:          "equal versions keep aggregator",
			status:        types.StatusOutdated,
			aggNewest:     "2.1",
			regNewest:     "2.1",
			wantPrefers:   false,
			wantStatus:    types.StatusOutdated,
			wantEffective: "2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := []types.ProjectGroup{{
				ProjectName:   "foo",
				NewestVersion: tt.aggNewest,
				Records:       []types.RepoRecord{{Repo: "altsisyphus", Version: "1.0", Status: tt.status}},
			}}
			regs := []types.RegistryPackage{{AggregatorName: "foo", RegistryName: "foo", OldVersion: "1.0", NewVersion: tt.regNewest, UpdateURL: "https://u", UpdateDate: "2025-01-01"}}

			records := Merge(groups, regs, version.Default)
			if len(records) != 1 {
				t.Fatalf("len(records) = %d, want 1", len(records))
			}
			rec := records[0]
			if rec.PrefersRegistry != tt.wantPrefers {
				t.Errorf("PrefersRegistry = %v, want %v", rec.PrefersRegistry, tt.wantPrefers)
			}
			if rec.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", rec.Status, tt.wantStatus)
			}
			if rec.EffectiveNewestVersion() != tt.wantEffective {
				t.Errorf("EffectiveNewestVersion() = %q, want %q", rec.EffectiveNewestVersion(), tt.wantEffective)
			}
			// registry fields are stamped regardless of preference
			if rec.RegistryNewestVersion != tt.regNewest || rec.RegistryUpdateURL != "https://u" || rec.RegistryUpdateDate != "2025-01-01" {
				t.Errorf("registry fields not stamped: %+v", rec)
			}
		})
	}
}

func TestMerge_EnrichesEveryRepository(t *testing.T) {
	groups := []types.ProjectGroup{{
		ProjectName:   "foo",
		NewestVersion: "2.0",
		Records: []types.RepoRecord{
			{Repo: "altsisyphus", Version: "1.0", Status: types.StatusOutdated},
			{Repo: "altlinux", Version: "1.0", Status: types.StatusOutdated},
		},
	}}
	regs := []types.RegistryPackage{{AggregatorName: "foo", RegistryName: "foo", NewVersion: "2.5"}}

	records := Merge(groups, regs, version.Default)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	for _, rec := range records {
		if rec.RegistryPackageName != "foo" || !rec.PrefersRegistry {
			t.Errorf("record %s not enriched: %+v", rec.Repository, rec)
		}
	}
}

func TestMerge_SynthesizesUnmatched(t *testing.T) {
	groups := []types.ProjectGroup{{
		ProjectName:   "foo",
		NewestVersion: "2.0",
		Records:       []types.RepoRecord{{Repo: "debian_unstable", Version: "2.0", Status: types.StatusNewest}},
	}}
	regs := []types.RegistryPackage{{AggregatorName: "python:bar", RegistryName: "python3-module-bar", OldVersion: "0.1", NewVersion: "0.2", UpdateURL: "https://bar"}}

	records := Merge(groups, regs, version.Default)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	bar := findRecord(records, "python:bar", types.RegistryRepository)
	if bar == nil {
		t.Fatal("synthesized record missing")
	}
	if bar.InstalledVersion != "0.1" || bar.Status != types.StatusOutdated || !bar.PrefersRegistry {
		t.Errorf("unexpected synthesized record: %+v", bar)
	}
	if bar.AggregatorNewestVersion != "" || bar.RegistryNewestVersion != "0.2" || bar.RegistryPackageName != "python3-module-bar" {
		t.Errorf("unexpected synthesized fields: %+v", bar)
	}

	foo := findRecord(records, "foo", "debian_unstable")
	if foo == nil || foo.PrefersRegistry || foo.RegistryPackageName != "" {
		t.Errorf("unmatched aggregator record changed: %+v", foo)
	}
}

func TestMerge_SkipsMalformed(t *testing.T) {
	groups := []types.ProjectGroup{
		{ProjectName: "", Records: []types.RepoRecord{{Repo: "r", Version: "1"}}},
		{ProjectName: "foo", Records: []types.RepoRecord{{Repo: "", Version: "1"}, {Repo: "r", Version: "1", Status: types.StatusNewest}}},
	}
	regs := []types.RegistryPackage{{AggregatorName: "", RegistryName: "ghost", NewVersion: "9"}}

	records := Merge(groups, regs, version.Default)
	if len(records) != 1 || records[0].Name != "foo" || records[0].Repository != "r" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestMerge_BothEmpty(t *testing.T) {
	tests := []struct {
		name   string
		groups []types.ProjectGroup
		regs   []types.RegistryPackage
	}{
		{name: "nil inputs"},
		{name: "empty inputs", groups: []types.ProjectGroup{}, regs: []types.RegistryPackage{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := Merge(tt.groups, tt.regs, version.Default)
			if records == nil {
				t.Fatal("Merge() = nil, want empty slice")
			}
			if len(records) != 0 {
				t.Errorf("len(records) = %d, want 0", len(records))
			}
		})
	}
}

func TestRemerge_KeepsStatusDrivenPreference(t *testing.T) {
	groups := []types.ProjectGroup{
		{
			ProjectName:   "foo",
			NewestVersion: "1.0",
			Records:       []types.RepoRecord{{Repo: "r1", Version: "1.0", Status: types.StatusNewest}},
		},
	}
	regs := []types.RegistryPackage{
		{AggregatorName: "foo", RegistryName: "foo", OldVersion: "1.0", NewVersion: "0.9"},
	}

	first := Merge(groups, regs, version.Default)
	if len(first) != 1 || !first[0].PrefersRegistry || first[0].EffectiveNewestVersion() != "0.9" {
		t.Fatalf("first merge = %+v", first)
	}

	second := Remerge(first, regs, version.Default)
	if len(second) != 1 {
		t.Fatalf("len(second) = %d, want 1", len(second))
	}
	rec := second[0]
	if !rec.PrefersRegistry {
		t.Error("PrefersRegistry lost on re-merge")
	}
	if rec.Status != types.StatusOutdated {
		t.Errorf("Status = %q, want outdated", rec.Status)
	}
	if rec.EffectiveNewestVersion() != "0.9" {
		t.Errorf("EffectiveNewestVersion() = %q, want 0.9", rec.EffectiveNewestVersion())
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-merge changed records:\n first  %+v\n second %+v", first, second)
	}
}

func TestRemerge_SkipsKeylessAndDuplicates(t *testing.T) {
	records := []types.PackageRecord{
		{Name: "foo", Repository: "r1", InstalledVersion: "1.0", Status: types.StatusNewest},
		{Name: "foo", Repository: "r1", InstalledVersion: "0.5", Status: types.StatusOutdated},
		{Name: "", Repository: "r1"},
		{Name: "bar", Repository: ""},
	}

	out := Remerge(records, nil, version.Default)
	if len(out) != 1 || out[0].InstalledVersion != "1.0" {
		t.Errorf("unexpected records: %+v", out)
	}
}

func TestMerge_DefaultsForMissingFields(t *testing.T) {
	groups := []types.ProjectGroup{{ProjectName: "foo", Records: []types.RepoRecord{{Repo: "r"}}}}

	records := Merge(groups, nil, nil)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].InstalledVersion != "unknown" || records[0].Status != types.StatusUnknown {
		t.Errorf("unexpected defaults: %+v", records[0])
	}
}

func TestMerge_SortedOutput(t *testing.T) {
	groups := []types.ProjectGroup{
		{ProjectName: "zeta", Records: []types.RepoRecord{{Repo: "b", Status: types.StatusNewest}, {Repo: "a", Status: types.StatusNewest}}},
		{ProjectName: "alpha", Records: []types.RepoRecord{{Repo: "c", Status: types.StatusNewest}}},
	}
	regs := []types.RegistryPackage{{AggregatorName: "mid", RegistryName: "mid", NewVersion: "1"}}

	records := Merge(groups, regs, version.Default)

	var got []types.RecordKey
	for _, r := range records {
		got = append(got, r.Key())
	}
	want := []types.RecordKey{
		{Name: "alpha", Repository: "c"},
		{Name: "mid", Repository: types.RegistryRepository},
		{Name: "zeta", Repository: "a"},
		{Name: "zeta", Repository: "b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestSplitBySource(t *testing.T) {
	records := []types.PackageRecord{
		{Name: "a", PrefersRegistry: true},
		{Name: "b"},
		{Name: "c", PrefersRegistry: true},
	}

	registry, aggregatorOnly := SplitBySource(records)
	if len(registry) != 2 || registry[0].Name != "a" || registry[1].Name != "c" {
		t.Errorf("registry = %+v", registry)
	}
	if len(aggregatorOnly) != 1 || aggregatorOnly[0].Name != "b" {
		t.Errorf("aggregatorOnly = %+v", aggregatorOnly)
	}
}
