// Package persistence provides the storage abstraction for edited step lists and the scenario catalog.
package persistence

import (
	"context"

	"github.com/dukex/stepflow/pkg/models"
)

// StepRepository stores the step list of each workflow.
type StepRepository interface {
	// GetSteps returns ErrWorkflowNotFound when nothing was saved for workflowID.
	GetSteps(ctx context.Context, workflowID string) (*models.WorkflowSteps, error)

	// SaveSteps stores record unless a newer revision is already stored, in
	// which case it returns ErrStaleRevision. Saving the stored revision again
	// overwrites it.
	SaveSteps(ctx context.Context, record *models.WorkflowSteps) error

	DeleteSteps(ctx context.Context, workflowID string) error
}

// ScenarioRepository stores the email scenarios offered in the step editor.
type ScenarioRepository interface {
	ListScenarios(ctx context.Context) ([]models.ScenarioOption, error)
	SaveScenario(ctx context.Context, scenario models.ScenarioOption) error
}

type Persistence interface {
	StepRepository
	ScenarioRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
