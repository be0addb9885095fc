package application

import (
	"fmt"

	"go.uber.org/zap"

	analysisapp "github.com/khanhnv2901/nginx-audit/internal/application/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/nginx-audit/internal/rules"
)

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	// Rules
	Registry *engine.Registry

	// Repositories
	RunRepo analysis.Repository

	// Services
	AnalysisService *analysisapp.Service
}

// NewContainer wires the analysis service over the built-in rules. When
// registry is nil every built-in rule is used; resultsDir holds run history.
func NewContainer(resultsDir string, registry *engine.Registry, logger *zap.Logger, opts ...engine.Option) (*Container, error) {
	if registry == nil {
		var err error
		registry, err = rules.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to register rules: %w", err)
		}
	}

	runRepo, err := json.NewRunRepository(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create run repository: %w", err)
	}

	return &Container{
		Registry:        registry,
		RunRepo:         runRepo,
		AnalysisService: analysisapp.NewService(registry, runRepo, logger, opts...),
	}, nil
}
