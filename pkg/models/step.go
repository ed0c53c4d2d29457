// Package models defines the core domain models for workflow step authoring.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType is the closed set of behaviors a workflow step can have.
type ActionType string

const (
	ActionWait               ActionType = "wait"
	ActionSendEmail          ActionType = "send_email"
	ActionUpdateField        ActionType = "update_field"
	ActionClearField         ActionType = "clear_field"
	ActionWebhook            ActionType = "webhook"
	ActionBranch             ActionType = "branch"
	ActionRemoveFromWorkflow ActionType = "remove_from_workflow"
	ActionScenario           ActionType = "scenario"
)

// ActionTypes lists every action type in palette order.
var ActionTypes = []ActionType{
	ActionWait,
	ActionSendEmail,
	ActionUpdateField,
	ActionClearField,
	ActionWebhook,
	ActionBranch,
	ActionRemoveFromWorkflow,
	ActionScenario,
}

// ErrUnknownActionType is returned when an action type tag is not part of the closed set.
var ErrUnknownActionType = errors.New("unknown action type")

// Valid reports whether the action type is one of the known tags.
func (a ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if a == known {
			return true
		}
	}

	return false
}

// IsTerminal reports whether steps of this type end the workflow for a contact.
func (a ActionType) IsTerminal() bool {
	return a == ActionRemoveFromWorkflow
}

// Step is one unit of workflow behavior.
type Step struct {
	ClientID   string     `json:"clientId"             validate:"required"`
	Order      int        `json:"order"                validate:"min=1"`
	ActionType ActionType `json:"actionType"           validate:"required"`
	Config     StepConfig `json:"config"`
	CustomName string     `json:"customName,omitempty"`
}

// Clone returns a copy of the step that shares no mutable state with the
// receiver. A typed nil config becomes a nil Config.
func (s Step) Clone() Step {
	out := s
	if s.Config != nil {
		out.Config = s.Config.Clone()
	}

	return out
}

// Branch returns the branch configuration when the step is a branch.
func (s Step) Branch() (*BranchConfig, bool) {
	if s.ActionType != ActionBranch {
		return nil, false
	}

	cfg, ok := s.Config.(*BranchConfig)

	return cfg, ok && cfg != nil
}

type stepJSON struct {
	ClientID   string          `json:"clientId"`
	Order      int             `json:"order"`
	ActionType ActionType      `json:"actionType"`
	Config     json.RawMessage `json:"config"`
	CustomName string          `json:"customName,omitempty"`
}

// UnmarshalJSON decodes the config payload into the variant selected by actionType.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	config, err := DecodeConfig(raw.ActionType, raw.Config)
	if err != nil {
		return fmt.Errorf("step %s: %w", raw.ClientID, err)
	}

	*s = Step{
		ClientID:   raw.ClientID,
		Order:      raw.Order,
		ActionType: raw.ActionType,
		Config:     config,
		CustomName: raw.CustomName,
	}

	return nil
}

// CloneSteps copies a step list element by element.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}

	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}

	return out
}

// IndexOf returns the position of the step with the given client id, or -1.
func IndexOf(steps []Step, clientID string) int {
	for i := range steps {
		if steps[i].ClientID == clientID {
			return i
		}
	}

	return -1
}
