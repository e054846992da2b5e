package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// DefaultExpression notifies about every outdated package.
const DefaultExpression = "true"

// PolicyEngine defines the interface for policy evaluation
type PolicyEngine interface {
	// Evaluate selects which of identifier's outdated records warrant a notification.
	Evaluate(ctx context.Context, identifier string, records []types.PackageRecord) (*Decision, error)
}

// PolicyConfig defines a CEL-based notification policy
type PolicyConfig struct {
	// Expression is evaluated once per outdated record and must return a bool.
	// Available variables:
	//   - name: aggregator project name
	//   - repository: repository the record belongs to
	//   - status: aggregator status string
	//   - installedVersion: version in the repository
	//   - newestVersion: newest version from the preferred source
	//   - prefersRegistry: whether the registry's newest version is trusted
	//   - registryName: registry package name, or ""
	//   - source: "registry" or "aggregator"
	Expression string `yaml:"expression" json:"expression"`
}

// Decision is the result of evaluating a policy over one maintainer's records.
type Decision struct {
	Identifier    string
	OutdatedCount int
	Notify        []types.PackageRecord
	SkippedCount  int
	Reason        string
}

// NotifiedCount returns how many records the policy selected.
func (d *Decision) NotifiedCount() int {
	return len(d.Notify)
}

// Engine implements PolicyEngine with a compiled CEL program.
type Engine struct {
	logger     *slog.Logger
	config     PolicyConfig
	celProgram cel.Program
}

var (
	envOnce sync.Once
	envErr  error
	celEnv  *cel.Env
)

func environment() (*cel.Env, error) {
	envOnce.Do(func() {
		celEnv, envErr = cel.NewEnv(
			cel.Variable("name", cel.StringType),
			cel.Variable("repository", cel.StringType),
			cel.Variable("status", cel.StringType),
			cel.Variable("installedVersion", cel.StringType),
			cel.Variable("newestVersion", cel.StringType),
			cel.Variable("prefersRegistry", cel.BoolType),
			cel.Variable("registryName", cel.StringType),
			cel.Variable("source", cel.StringType),
		)
	})
	return celEnv, envErr
}

// NewEngine compiles config.Expression. An empty expression means DefaultExpression.
func NewEngine(logger *slog.Logger, config PolicyConfig) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Expression == "" {
		config.Expression = DefaultExpression
	}

	env, err := environment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(config.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy expression must return a boolean, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Engine{
		logger:     logger,
		config:     config,
		celProgram: program,
	}, nil
}

// Expression returns the compiled expression.
func (e *Engine) Expression() string {
	return e.config.Expression
}

// Evaluate runs the policy over every outdated record. Records that are not
// outdated are ignored.
func (e *Engine) Evaluate(ctx context.Context, identifier string, records []types.PackageRecord) (*Decision, error) {
	decision := &Decision{
		Identifier: identifier,
		Notify:     make([]types.PackageRecord, 0),
	}
	metrics := observability.GetMetrics()

	for _, rec := range records {
		if !rec.IsOutdated() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decision.OutdatedCount++

		notify, err := e.Match(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policy for %s: %w", rec.Name, err)
		}
		if notify {
			decision.Notify = append(decision.Notify, rec)
			metrics.PolicyNotified.Inc()
		} else {
			decision.SkippedCount++
			metrics.PolicySkipped.Inc()
			e.logger.Debug("package filtered by policy",
				"identifier", identifier,
				"name", rec.Name,
				"repository", rec.Repository,
				"expression", e.config.Expression)
		}
	}

	decision.Reason = fmt.Sprintf("policy selected %d of %d outdated packages", len(decision.Notify), decision.OutdatedCount)
	e.logger.Info("policy evaluated",
		"identifier", identifier,
		"outdated", decision.OutdatedCount,
		"notify", len(decision.Notify),
		"skipped", decision.SkippedCount)

	return decision, nil
}

// Match evaluates the expression against a single record.
func (e *Engine) Match(rec types.PackageRecord) (bool, error) {
	out, _, err := e.celProgram.Eval(map[string]interface{}{
		"name":             rec.Name,
		"repository":       rec.Repository,
		"status":           string(rec.Status),
		"installedVersion": rec.InstalledVersion,
		"newestVersion":    rec.EffectiveNewestVersion(),
		"prefersRegistry":  rec.PrefersRegistry,
		"registryName":     rec.RegistryPackageName,
		"source":           rec.Source(),
	})
	if err != nil {
		return false, err
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy expression did not return a boolean: %v", out.Value())
	}
	return matched, nil
}
