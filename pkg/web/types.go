// Package web provides HTTP request and response types for the step editor API.
package web

import (
	"encoding/json"

	"github.com/dukex/stepflow/pkg/editor"
	"github.com/dukex/stepflow/pkg/models"
)

// AddStepRequest represents the request body for inserting a step.
// InsertAfter is a 0-based index; -1 inserts at the head and an omitted
// value appends to the end.
type AddStepRequest struct {
	ActionType  string `json:"action_type"  validate:"required"`
	InsertAfter *int   `json:"insert_after" validate:"omitempty,min=-1"`
}

// UpdateStepRequest represents the request body for updating a step. A null
// or missing config resets the step to the action's default config.
type UpdateStepRequest struct {
	ActionType string          `json:"action_type" validate:"required"`
	Config     json.RawMessage `json:"config,omitempty"`
	CustomName string          `json:"custom_name" validate:"max=120"`
}

// MoveStepRequest represents the request body for moving a step.
type MoveStepRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// ReplaceStepsRequest replaces the whole step list, for imports.
type ReplaceStepsRequest struct {
	Steps []models.Step `json:"steps" validate:"required"`
}

// SaveScenarioRequest represents the request body for adding a scenario.
type SaveScenarioRequest struct {
	ID   string `json:"id"   validate:"required"`
	Name string `json:"name" validate:"required,min=1"`
}

// StepResponse is returned by step mutations. Step is the affected step when
// there is one; the rest is the committed state after the mutation.
type StepResponse struct {
	Step    *models.Step `json:"step,omitempty"`
	Changed bool         `json:"changed"`
	editor.Snapshot
}
