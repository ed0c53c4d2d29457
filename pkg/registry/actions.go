package registry

import "github.com/dukex/stepflow/pkg/models"

const defaultBranchWeight = 50

func builtinDefinitions() []Definition {
	return []Definition{
		{
			Type:        models.ActionWait,
			Name:        "Wait",
			Description: "Pauses the contact for a fixed duration before the next step",
			Schema: objectSchema([]string{"duration", "unit"}, map[string]any{
				"duration": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"description": "How long to wait",
				},
				"unit": map[string]any{
					"type": "string",
					"enum": []string{"minutes", "hours", "days"},
				},
			}),
			Default: func() models.StepConfig {
				return &models.WaitConfig{Duration: 1, Unit: models.UnitDays}
			},
		},
		{
			Type:        models.ActionSendEmail,
			Name:        "Send email",
			Description: "Sends an email built from a scenario",
			Schema: objectSchema(nil, map[string]any{
				"scenarioId":      map[string]any{"type": "string"},
				"subjectOverride": map[string]any{"type": "string"},
			}),
			Default: func() models.StepConfig {
				return &models.SendEmailConfig{}
			},
		},
		{
			Type:        models.ActionUpdateField,
			Name:        "Update field",
			Description: "Sets a contact field to a fixed value or a random value from a pool",
			Schema: objectSchema([]string{"fieldPath", "assignmentType", "values"}, map[string]any{
				"fieldPath":      map[string]any{"type": "string"},
				"assignmentType": assignmentTypeSchema(),
				"values": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"minItems": 1,
				},
			}),
			Default: func() models.StepConfig {
				return &models.UpdateFieldConfig{
					AssignmentType: models.AssignmentSingle,
					Values:         []string{""},
				}
			},
		},
		{
			Type:        models.ActionClearField,
			Name:        "Clear field",
			Description: "Removes the value of a contact field",
			Schema: objectSchema([]string{"fieldPath"}, map[string]any{
				"fieldPath": map[string]any{"type": "string"},
			}),
			Default: func() models.StepConfig {
				return &models.ClearFieldConfig{}
			},
		},
		{
			Type:        models.ActionWebhook,
			Name:        "Webhook",
			Description: "Posts the contact to an external URL",
			Schema: objectSchema([]string{"url", "method"}, map[string]any{
				"url":    map[string]any{"type": "string"},
				"method": map[string]any{"type": "string", "enum": []string{models.WebhookMethod}},
			}),
			Default: func() models.StepConfig {
				return &models.WebhookConfig{Method: models.WebhookMethod}
			},
		},
		{
			Type:        models.ActionBranch,
			Name:        "Branch",
			Description: "Splits contacts across weighted paths",
			Schema: objectSchema([]string{"type", "paths"}, map[string]any{
				"type": map[string]any{"type": "string", "enum": []string{models.BranchTypePercentageSplit}},
				"paths": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": objectSchema([]string{"weight"}, map[string]any{
						"weight":        map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
						"nextStepOrder": map[string]any{"type": "integer"},
						"nextStepId":    map[string]any{"type": "string"},
					}),
				},
			}),
			Default: func() models.StepConfig {
				return &models.BranchConfig{
					Type: models.BranchTypePercentageSplit,
					Paths: []models.BranchPath{
						{Weight: defaultBranchWeight},
						{Weight: defaultBranchWeight},
					},
				}
			},
		},
		{
			Type:        models.ActionRemoveFromWorkflow,
			Name:        "Remove from workflow",
			Description: "Ends the workflow for the contact",
			Terminal:    true,
			Schema:      objectSchema(nil, map[string]any{}),
			Default: func() models.StepConfig {
				return &models.RemoveFromWorkflowConfig{}
			},
		},
		{
			Type:        models.ActionScenario,
			Name:        "Assign scenario",
			Description: "Assigns one scenario or a random scenario from a pool",
			Schema: objectSchema([]string{"assignmentType", "scenarioIds"}, map[string]any{
				"assignmentType": assignmentTypeSchema(),
				"scenarioIds": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			}),
			Default: func() models.StepConfig {
				return &models.ScenarioConfig{
					AssignmentType: models.AssignmentSingle,
					ScenarioIDs:    []string{},
				}
			},
		},
	}
}

func objectSchema(required []string, properties map[string]any) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func assignmentTypeSchema() map[string]any {
	return map[string]any{
		"type": "string",
		"enum": []string{string(models.AssignmentSingle), string(models.AssignmentRandomPool)},
	}
}
