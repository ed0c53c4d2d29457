package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

// Scenarios serves the scenario pick-list used by send_email and scenario steps.
type Scenarios struct {
	repository persistence.ScenarioRepository
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewScenarios(repository persistence.ScenarioRepository, logger *slog.Logger) *Scenarios {
	return &Scenarios{
		repository: repository,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}
}

// List returns the pick-list sorted by name.
func (s *Scenarios) List(ctx context.Context) ([]models.ScenarioOption, error) {
	scenarios, err := s.repository.ListScenarios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	if scenarios == nil {
		scenarios = []models.ScenarioOption{}
	}

	return scenarios, nil
}

// Save adds or renames a scenario.
func (s *Scenarios) Save(ctx context.Context, scenario models.ScenarioOption) error {
	if err := s.validate.Struct(scenario); err != nil {
		return NewValidationError("scenarios.save", "invalid_scenario", err.Error(), ErrInvalidRequest)
	}

	if err := s.repository.SaveScenario(ctx, scenario); err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}

	s.logger.InfoContext(ctx, "Saved scenario", "scenario_id", scenario.ID)

	return nil
}

// Names maps scenario ids to names.
func (s *Scenarios) Names(ctx context.Context) (map[string]string, error) {
	scenarios, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(scenarios))
	for _, scenario := range scenarios {
		names[scenario.ID] = scenario.Name
	}

	return names, nil
}
