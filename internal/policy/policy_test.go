package policy

import (
	"context"
	"log/slog"
	"testing"

	"github.com/daimoniac/pkgwatch/internal/types"
)

func sampleRecords() []types.PackageRecord {
	return []types.PackageRecord{
		{
			Name:                    "foo",
			Repository:              "altsisyphus",
			InstalledVersion:        "1.0",
			Status:                  types.StatusOutdated,
			AggregatorNewestVersion: "2.0",
			RegistryPackageName:     "foo-alt",
			RegistryNewestVersion:   "2.1",
			PrefersRegistry:         true,
		},
		{
			Name:                    "python:bar",
			Repository:              "debian_unstable",
			InstalledVersion:        "0.1",
			Status:                  types.StatusOutdated,
			AggregatorNewestVersion: "0.3",
		},
		{
			Name:             "baz",
			Repository:       "altsisyphus",
			InstalledVersion: "5.0",
			Status:           types.StatusNewest,
		},
	}
}

func TestEngine_DefaultNotifiesEveryOutdated(t *testing.T) {
	engine, err := NewEngine(slog.Default(), PolicyConfig{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine.Expression() != DefaultExpression {
		t.Errorf("Expression() = %q, want %q", engine.Expression(), DefaultExpression)
	}

	decision, err := engine.Evaluate(context.Background(), "alice@altlinux.org", sampleRecords())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if decision.OutdatedCount != 2 {
		t.Errorf("OutdatedCount = %d, want 2", decision.OutdatedCount)
	}
	if decision.NotifiedCount() != 2 || decision.SkippedCount != 0 {
		t.Errorf("notified = %d skipped = %d", decision.NotifiedCount(), decision.SkippedCount)
	}
}

func TestEngine_Expressions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantNotify []string
	}{
		{name: "registry only", expression: `source == "registry"`, wantNotify: []string{"foo"}},
		{name: "prefers registry flag", expression: `prefersRegistry`, wantNotify: []string{"foo"}},
		{name: "repository filter", expression: `repository == "debian_unstable"`, wantNotify: []string{"python:bar"}},
		{name: "name prefix", expression: `!name.startsWith("python:")`, wantNotify: []string{"foo"}},
		{name: "newest version", expression: `newestVersion == "2.1"`, wantNotify: []string{"foo"}},
		{name: "registry name present", expression: `registryName != ""`, wantNotify: []string{"foo"}},
		{name: "installed version", expression: `installedVersion.startsWith("0.")`, wantNotify: []string{"python:bar"}},
		{name: "status", expression: `status == "outdated"`, wantNotify: []string{"foo", "python:bar"}},
		{name: "nothing", expression: `false`, wantNotify: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(slog.Default(), PolicyConfig{Expression: tt.expression})
			if err != nil {
				t.Fatalf("NewEngine(%q) error = %v", tt.expression, err)
			}

			decision, err := engine.Evaluate(context.Background(), "alice@altlinux.org", sampleRecords())
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}

			var got []string
			for _, r := range decision.Notify {
				got = append(got, r.Name)
			}
			if len(got) != len(tt.wantNotify) {
				t.Fatalf("notified = %v, want %v", got, tt.wantNotify)
			}
			for i := range got {
				if got[i] != tt.wantNotify[i] {
					t.Errorf("notified = %v, want %v", got, tt.wantNotify)
				}
			}
			if decision.NotifiedCount()+decision.SkippedCount != decision.OutdatedCount {
				t.Error("notified plus skipped must equal outdated")
			}
		})
	}
}

func TestNewEngine_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{name: "syntax error", expression: `name ==`},
		{name: "unknown variable", expression: `severity == "HIGH"`},
		{name: "non-boolean", expression: `name`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(slog.Default(), PolicyConfig{Expression: tt.expression}); err == nil {
				t.Errorf("NewEngine(%q) expected error", tt.expression)
			}
		})
	}
}

func TestEngine_ContextCancelled(t *testing.T) {
	engine, err := NewEngine(slog.Default(), PolicyConfig{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Evaluate(ctx, "alice@altlinux.org", sampleRecords()); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSet(t *testing.T) {
	set, err := NewSet(slog.Default(), PolicyConfig{Expression: `prefersRegistry`})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	def, err := set.For("")
	if err != nil || def != set.Default() {
		t.Fatalf("For(\"\") = %v, %v; want default engine", def, err)
	}

	a, err := set.For(`source == "aggregator"`)
	if err != nil {
		t.Fatalf("For() error = %v", err)
	}
	b, _ := set.For(`source == "aggregator"`)
	if a != b {
		t.Error("expected compiled engine to be reused")
	}

	if _, err := set.For(`not valid (`); err == nil {
		t.Error("expected compile error")
	}

	if _, err := NewSet(slog.Default(), PolicyConfig{Expression: `1 + 1`}); err == nil {
		t.Error("expected NewSet to reject a non-boolean default")
	}
}
