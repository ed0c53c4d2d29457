package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// ScenarioRepository handles scenario catalog database operations.
type ScenarioRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScenarioRepository creates a new scenario repository.
func NewScenarioRepository(db *sql.DB, logger *slog.Logger) *ScenarioRepository {
	return &ScenarioRepository{db: db, logger: logger}
}

// ListScenarios returns the scenario catalog sorted by name.
func (p *Persistence) ListScenarios(ctx context.Context) ([]models.ScenarioOption, error) {
	return p.scenarioRepo.List(ctx)
}

// SaveScenario adds a scenario or renames an existing one.
func (p *Persistence) SaveScenario(ctx context.Context, scenario models.ScenarioOption) error {
	return p.scenarioRepo.Save(ctx, scenario)
}

func (r *ScenarioRepository) List(ctx context.Context) ([]models.ScenarioOption, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM scenarios ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	scenarios := make([]models.ScenarioOption, 0)

	for rows.Next() {
		var scenario models.ScenarioOption
		if err := rows.Scan(&scenario.ID, &scenario.Name); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}

		scenarios = append(scenarios, scenario)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating scenarios: %w", err)
	}

	return scenarios, nil
}

func (r *ScenarioRepository) Save(ctx context.Context, scenario models.ScenarioOption) error {
	if scenario.ID == "" || scenario.Name == "" {
		return fmt.Errorf("%w: id and name are required", persistence.ErrInvalidScenario)
	}

	query := `
		INSERT INTO scenarios (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, scenario.ID, scenario.Name)
	if err != nil {
		return fmt.Errorf("failed to save scenario %s: %w", scenario.ID, err)
	}

	return nil
}
