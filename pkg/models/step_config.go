package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// TimeUnit is the unit of a wait duration.
type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
)

// AssignmentType selects between a fixed value and a random pick from a pool.
type AssignmentType string

const (
	AssignmentSingle     AssignmentType = "single"
	AssignmentRandomPool AssignmentType = "random_pool"
)

// BranchTypePercentageSplit is the only supported branch strategy.
const BranchTypePercentageSplit = "percentage_split"

// WebhookMethod is the fixed HTTP method of webhook steps.
const WebhookMethod = "POST"

// StepConfig is the per-action-type configuration payload of a step.
// The set of implementations is closed; use a type switch to dispatch on it.
type StepConfig interface {
	ActionType() ActionType
	Clone() StepConfig
	sealed()
}

// WaitConfig pauses the contact for Duration units before the next step.
type WaitConfig struct {
	Duration int      `json:"duration" validate:"min=1"`
	Unit     TimeUnit `json:"unit"     validate:"oneof=minutes hours days"`
}

// SendEmailConfig sends the email of a scenario, optionally with another subject.
type SendEmailConfig struct {
	ScenarioID      string `json:"scenarioId,omitempty"`
	SubjectOverride string `json:"subjectOverride,omitempty"`
}

// UpdateFieldConfig sets a contact field to a value, or to a random value of a pool.
type UpdateFieldConfig struct {
	FieldPath      string         `json:"fieldPath"      validate:"required"`
	AssignmentType AssignmentType `json:"assignmentType" validate:"oneof=single random_pool"`
	Values         []string       `json:"values"         validate:"min=1"`
}

// ClearFieldConfig empties a contact field.
type ClearFieldConfig struct {
	FieldPath string `json:"fieldPath" validate:"required"`
}

// WebhookConfig posts the contact to an external URL.
type WebhookConfig struct {
	URL    string `json:"url"    validate:"required,url"`
	Method string `json:"method" validate:"eq=POST"`
}

// BranchPath is one weighted outgoing path of a branch step.
//
// NextStepID references the target by client id and is resolved first.
// NextStepOrder is kept for list consumers that address steps by position.
type BranchPath struct {
	Weight        int    `json:"weight"               validate:"min=0,max=100"`
	NextStepOrder int    `json:"nextStepOrder"`
	NextStepID    string `json:"nextStepId,omitempty"`
}

// BranchConfig splits contacts across weighted paths.
type BranchConfig struct {
	Type  string       `json:"type"  validate:"eq=percentage_split"`
	Paths []BranchPath `json:"paths" validate:"min=1,dive"`
}

// TotalWeight sums the weights of all paths.
func (c *BranchConfig) TotalWeight() int {
	total := 0
	for _, path := range c.Paths {
		total += path.Weight
	}

	return total
}

// RemoveFromWorkflowConfig ends the workflow for the contact. It has no settings.
type RemoveFromWorkflowConfig struct{}

// ScenarioConfig assigns the contact to one scenario, or to a random one of a pool.
type ScenarioConfig struct {
	AssignmentType AssignmentType `json:"assignmentType" validate:"oneof=single random_pool"`
	ScenarioIDs    []string       `json:"scenarioIds"    validate:"min=1"`
}

func (*WaitConfig) ActionType() ActionType               { return ActionWait }
func (*SendEmailConfig) ActionType() ActionType          { return ActionSendEmail }
func (*UpdateFieldConfig) ActionType() ActionType        { return ActionUpdateField }
func (*ClearFieldConfig) ActionType() ActionType         { return ActionClearField }
func (*WebhookConfig) ActionType() ActionType            { return ActionWebhook }
func (*BranchConfig) ActionType() ActionType             { return ActionBranch }
func (*RemoveFromWorkflowConfig) ActionType() ActionType { return ActionRemoveFromWorkflow }
func (*ScenarioConfig) ActionType() ActionType           { return ActionScenario }

func (*WaitConfig) sealed()               {}
func (*SendEmailConfig) sealed()          {}
func (*UpdateFieldConfig) sealed()        {}
func (*ClearFieldConfig) sealed()         {}
func (*WebhookConfig) sealed()            {}
func (*BranchConfig) sealed()             {}
func (*RemoveFromWorkflowConfig) sealed() {}
func (*ScenarioConfig) sealed()           {}

// Clone methods return a nil StepConfig for a nil receiver, so a typed nil
// config reads as a missing one.

func (c *WaitConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	out := *c

	return &out
}

func (c *SendEmailConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	out := *c

	return &out
}

func (c *UpdateFieldConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	out := *c
	out.Values = slices.Clone(c.Values)

	return &out
}

func (c *ClearFieldConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	out := *c

	return &out
}

func (c *WebhookConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	out := *c

	return &out
}

func (c *BranchConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	out := *c
	out.Paths = slices.Clone(c.Paths)

	return &out
}

func (c *RemoveFromWorkflowConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	return &RemoveFromWorkflowConfig{}
}

func (c *ScenarioConfig) Clone() StepConfig {
	if c == nil {
		return nil
	}

	out := *c
	out.ScenarioIDs = slices.Clone(c.ScenarioIDs)

	return &out
}

// NewConfig returns an empty config of the variant matching actionType.
func NewConfig(actionType ActionType) (StepConfig, error) {
	switch actionType {
	case ActionWait:
		return &WaitConfig{}, nil
	case ActionSendEmail:
		return &SendEmailConfig{}, nil
	case ActionUpdateField:
		return &UpdateFieldConfig{}, nil
	case ActionClearField:
		return &ClearFieldConfig{}, nil
	case ActionWebhook:
		return &WebhookConfig{}, nil
	case ActionBranch:
		return &BranchConfig{}, nil
	case ActionRemoveFromWorkflow:
		return &RemoveFromWorkflowConfig{}, nil
	case ActionScenario:
		return &ScenarioConfig{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, actionType)
	}
}

// DecodeConfig decodes a raw JSON config into the variant selected by actionType.
// An absent or null payload decodes to a nil config.
func DecodeConfig(actionType ActionType, raw json.RawMessage) (StepConfig, error) {
	config, err := NewConfig(actionType)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if err := json.Unmarshal(trimmed, config); err != nil {
		return nil, fmt.Errorf("failed to decode %s config: %w", actionType, err)
	}

	return config, nil
}
