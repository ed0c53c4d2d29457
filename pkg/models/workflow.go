package models

import "time"

// WorkflowSteps is the committed step list of one workflow as handed to persistence.
type WorkflowSteps struct {
	WorkflowID string    `json:"workflow_id" validate:"required"`
	Revision   int64     `json:"revision"`
	Steps      []Step    `json:"steps"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ScenarioOption is one entry of the scenario pick-list.
type ScenarioOption struct {
	ID   string `json:"id"   validate:"required"`
	Name string `json:"name" validate:"required"`
}
