package registry

import (
	"strings"

	"github.com/dukex/stepflow/pkg/models"
)

// NormalizeUpdateField trims the values, drops empty ones and derives the
// assignment type from what remains. It returns a new config.
func NormalizeUpdateField(cfg *models.UpdateFieldConfig) *models.UpdateFieldConfig {
	values := make([]string, 0, len(cfg.Values))

	for _, value := range cfg.Values {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}

	out := &models.UpdateFieldConfig{FieldPath: cfg.FieldPath}

	if len(values) > 1 {
		out.AssignmentType = models.AssignmentRandomPool
		out.Values = values

		return out
	}

	out.AssignmentType = models.AssignmentSingle
	if len(values) == 0 {
		out.Values = []string{""}
	} else {
		out.Values = values[:1]
	}

	return out
}

// Normalize applies the save-time normalization of the step's config.
// Only update_field configs are rewritten.
func Normalize(step models.Step) models.Step {
	if cfg, ok := step.Config.(*models.UpdateFieldConfig); ok && cfg != nil {
		step.Config = NormalizeUpdateField(cfg)
	}

	return step
}

// SwitchActionType changes the step's action type and replaces its config with
// the new type's default. Configs are never carried across types.
func (r *Registry) SwitchActionType(step models.Step, actionType models.ActionType) (models.Step, error) {
	if step.ActionType == actionType && step.Config != nil {
		return step, nil
	}

	config, err := r.Default(actionType)
	if err != nil {
		return step, err
	}

	step.ActionType = actionType
	step.Config = config

	return step, nil
}
