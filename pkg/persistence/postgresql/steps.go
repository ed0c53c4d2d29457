package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// StepRepository handles step list database operations.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStepRepository creates a new step repository.
func NewStepRepository(db *sql.DB, logger *slog.Logger) *StepRepository {
	return &StepRepository{db: db, logger: logger}
}

// GetSteps returns the saved step list of a workflow.
func (p *Persistence) GetSteps(ctx context.Context, workflowID string) (*models.WorkflowSteps, error) {
	return p.stepRepo.Get(ctx, workflowID)
}

// SaveSteps upserts the step list unless a newer revision is stored.
func (p *Persistence) SaveSteps(ctx context.Context, record *models.WorkflowSteps) error {
	return p.stepRepo.Save(ctx, record)
}

// DeleteSteps removes the saved step list of a workflow.
func (p *Persistence) DeleteSteps(ctx context.Context, workflowID string) error {
	return p.stepRepo.Delete(ctx, workflowID)
}

func (r *StepRepository) Get(ctx context.Context, workflowID string) (*models.WorkflowSteps, error) {
	query := `
		SELECT
			workflow_id
		  , revision
		  , steps
		  , updated_at
		FROM workflow_steps
		WHERE workflow_id = $1
	`

	var (
		record   models.WorkflowSteps
		rawSteps []byte
	)

	err := r.db.QueryRowContext(ctx, query, workflowID).Scan(
		&record.WorkflowID,
		&record.Revision,
		&rawSteps,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetSteps", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to query steps of workflow %s: %w", workflowID, err)
	}

	if err := json.Unmarshal(rawSteps, &record.Steps); err != nil {
		return nil, persistence.NewWorkflowError("GetSteps", workflowID, fmt.Errorf("failed to decode steps: %w", err))
	}

	return &record, nil
}

func (r *StepRepository) Save(ctx context.Context, record *models.WorkflowSteps) error {
	if record.WorkflowID == "" {
		return persistence.ErrInvalidWorkflowID
	}

	steps := record.Steps
	if steps == nil {
		steps = []models.Step{}
	}

	rawSteps, err := json.Marshal(steps)
	if err != nil {
		return persistence.NewWorkflowError("SaveSteps", record.WorkflowID, fmt.Errorf("failed to encode steps: %w", err))
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workflow_steps (workflow_id, revision, steps, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workflow_id) DO UPDATE SET
			revision = EXCLUDED.revision
		  , steps = EXCLUDED.steps
		  , updated_at = EXCLUDED.updated_at
		WHERE workflow_steps.revision <= EXCLUDED.revision
	`

	result, err := r.db.ExecContext(ctx, query, record.WorkflowID, record.Revision, rawSteps, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save steps of workflow %s: %w", record.WorkflowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected > 0 {
		return nil
	}

	var stored int64

	err = r.db.QueryRowContext(ctx, "SELECT revision FROM workflow_steps WHERE workflow_id = $1", record.WorkflowID).Scan(&stored)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to read stored revision", "workflow_id", record.WorkflowID, "error", err)
	}

	return persistence.NewStaleRevisionError("SaveSteps", record.WorkflowID, record.Revision, stored)
}

func (r *StepRepository) Delete(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete steps of workflow %s: %w", workflowID, err)
	}

	return nil
}
