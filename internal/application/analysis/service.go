package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/parser"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

// ErrNoHistory is returned by history operations when the service was built
// without a repository.
var ErrNoHistory = errors.New("run history is not configured")

// Service parses configurations, dispatches the registered rules over them
// and keeps the resulting runs.
type Service struct {
	registry *engine.Registry
	runs     analysis.Repository
	logger   *zap.Logger
	opts     []engine.Option
}

// NewService creates a new analysis service. runs may be nil when history is
// not kept; opts are passed to every dispatcher the service creates.
func NewService(registry *engine.Registry, runs analysis.Repository, logger *zap.Logger, opts ...engine.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		runs:     runs,
		logger:   logger,
		opts:     opts,
	}
}

// Registry returns the rules the service dispatches.
func (s *Service) Registry() *engine.Registry {
	return s.registry
}

// AnalyzeFile parses the configuration at path and analyzes it.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*analysis.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return s.AnalyzeTree(ctx, path, root)
}

// AnalyzeReader parses configuration text read from r and analyzes it. name
// is used for locations and as the run's config name.
func (s *Service) AnalyzeReader(ctx context.Context, name string, r io.Reader) (*analysis.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return s.AnalyzeTree(ctx, name, root)
}

// AnalyzeTree dispatches the rules over an already built tree.
func (s *Service) AnalyzeTree(ctx context.Context, name string, root *tree.Node) (*analysis.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := append([]engine.Option{engine.WithLogger(s.logger)}, s.opts...)
	result, err := engine.NewDispatcher(s.registry, opts...).Run(root)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", name, err)
	}

	run, err := analysis.NewRun(result.RunID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if err := run.Start(); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	findings := make([]analysis.Finding, 0, len(result.Issues))
	for _, i := range result.Issues {
		findings = append(findings, analysis.FindingFromIssue(i))
	}
	if err := run.AddFindings(findings...); err != nil {
		return nil, fmt.Errorf("failed to add findings: %w", err)
	}
	for _, f := range result.Faults {
		if err := run.AddFault(f.Error()); err != nil {
			return nil, fmt.Errorf("failed to add fault: %w", err)
		}
	}

	stats := analysis.Stats{
		Nodes:       result.Stats.Nodes,
		Invocations: result.Stats.Invocations,
		Duration:    result.Stats.Duration,
	}
	if err := run.Complete(stats); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}

	s.logger.Info("analysis_complete",
		zap.String("run_id", run.ID()),
		zap.String("config", name),
		zap.Int("issues", len(findings)),
		zap.Int("faults", len(result.Faults)),
		zap.Stringer("max_severity", run.MaxSeverity()),
	)

	return run, nil
}

// Save persists a finished run.
func (s *Service) Save(ctx context.Context, run *analysis.Run) error {
	if s.runs == nil {
		return ErrNoHistory
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a stored run by ID
func (s *Service) GetRun(ctx context.Context, id string) (*analysis.Run, error) {
	if s.runs == nil {
		return nil, ErrNoHistory
	}
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves every stored run, oldest first.
func (s *Service) ListRuns(ctx context.Context) ([]*analysis.Run, error) {
	if s.runs == nil {
		return nil, ErrNoHistory
	}
	runs, err := s.runs.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// VerifyRun checks a stored run against its recorded digest.
func (s *Service) VerifyRun(ctx context.Context, id string) (bool, error) {
	if s.runs == nil {
		return false, ErrNoHistory
	}
	ok, err := s.runs.VerifyIntegrity(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to verify run: %w", err)
	}
	return ok, nil
}

// DeleteRun removes a stored run.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	if s.runs == nil {
		return ErrNoHistory
	}
	if err := s.runs.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
