// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/stepflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestStep creates a test Step with default values that can be overridden.
func CreateTestStep(overrides ...func(*models.Step)) models.Step {
	step := models.Step{
		ClientID:   uuid.New().String(),
		Order:      1,
		ActionType: models.ActionWait,
		Config:     &models.WaitConfig{Duration: 1, Unit: models.UnitDays},
	}

	for _, override := range overrides {
		override(&step)
	}

	return step
}

// WithID sets the step client id.
func WithID(id string) func(*models.Step) {
	return func(s *models.Step) {
		s.ClientID = id
	}
}

// WithName sets the step custom name.
func WithName(name string) func(*models.Step) {
	return func(s *models.Step) {
		s.CustomName = name
	}
}

// WithConfig sets the config and the matching action type.
func WithConfig(config models.StepConfig) func(*models.Step) {
	return func(s *models.Step) {
		s.ActionType = config.ActionType()
		s.Config = config
	}
}

// AsTerminal turns the step into a remove_from_workflow step.
func AsTerminal() func(*models.Step) {
	return WithConfig(&models.RemoveFromWorkflowConfig{})
}

// AsEmail turns the step into a send_email step.
func AsEmail(scenarioID string) func(*models.Step) {
	return WithConfig(&models.SendEmailConfig{ScenarioID: scenarioID})
}

// AsBranch turns the step into a percentage split over the given paths.
func AsBranch(paths ...models.BranchPath) func(*models.Step) {
	return WithConfig(&models.BranchConfig{
		Type:  models.BranchTypePercentageSplit,
		Paths: paths,
	})
}

// PathToOrder builds a branch path referencing its target by order.
func PathToOrder(weight, order int) models.BranchPath {
	return models.BranchPath{Weight: weight, NextStepOrder: order}
}

// PathToID builds a branch path referencing its target by client id.
func PathToID(weight int, clientID string) models.BranchPath {
	return models.BranchPath{Weight: weight, NextStepID: clientID}
}

// Sequence assigns orders 1..N to the given steps in place and returns them.
func Sequence(steps ...models.Step) []models.Step {
	for i := range steps {
		steps[i].Order = i + 1
	}

	return steps
}

// Orders returns the order values of steps in list order.
func Orders(steps []models.Step) []int {
	out := make([]int, len(steps))
	for i, step := range steps {
		out[i] = step.Order
	}

	return out
}

// ClientIDs returns the client ids of steps in list order.
func ClientIDs(steps []models.Step) []string {
	out := make([]string, len(steps))
	for i, step := range steps {
		out[i] = step.ClientID
	}

	return out
}
