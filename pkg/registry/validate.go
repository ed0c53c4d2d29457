package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidConfig is returned when a config payload does not match its action schema.
var ErrInvalidConfig = errors.New("invalid step config")

// Issue is a single validation finding for a step.
type Issue struct {
	ClientID string `json:"client_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("%s: %s", i.Field, i.Message)
	}

	return i.Message
}

// ValidatePayload checks a raw JSON config against the action type's schema.
func (r *Registry) ValidatePayload(actionType models.ActionType, payload []byte) error {
	def, ok := r.definitions[actionType]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownActionType, actionType)
	}

	schemaLoader := gojsonschema.NewGoLoader(def.Schema)
	dataLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(details, "; "))
	}

	return nil
}

// ValidateStep reports everything that would keep the step from running as configured.
// Findings never block editing.
func (r *Registry) ValidateStep(step models.Step) []Issue {
	var issues []Issue

	if _, ok := r.definitions[step.ActionType]; !ok {
		return []Issue{{ClientID: step.ClientID, Field: "actionType", Message: "unknown action type " + string(step.ActionType)}}
	}

	if step.Config == nil {
		return []Issue{{ClientID: step.ClientID, Field: "config", Message: "config is missing"}}
	}

	if step.Config.ActionType() != step.ActionType {
		return []Issue{{
			ClientID: step.ClientID,
			Field:    "config",
			Message:  fmt.Sprintf("config of %s does not match action type %s", step.Config.ActionType(), step.ActionType),
		}}
	}

	err := r.validate.Struct(step.Config)

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			issues = append(issues, Issue{
				ClientID: step.ClientID,
				Field:    fieldErr.Namespace(),
				Message:  fmt.Sprintf("failed %q rule", fieldErr.Tag()),
			})
		}
	} else if err != nil {
		issues = append(issues, Issue{ClientID: step.ClientID, Field: "config", Message: err.Error()})
	}

	if branch, ok := step.Branch(); ok && len(branch.Paths) > 0 {
		if total := branch.TotalWeight(); total != 100 {
			issues = append(issues, Issue{
				ClientID: step.ClientID,
				Field:    "paths",
				Message:  fmt.Sprintf("weights sum to %d, expected 100", total),
			})
		}
	}

	return issues
}

// ValidateSteps validates every step and the list-level invariants.
func (r *Registry) ValidateSteps(steps []models.Step) []Issue {
	var issues []Issue

	seen := make(map[string]bool, len(steps))

	for i, step := range steps {
		if seen[step.ClientID] {
			issues = append(issues, Issue{ClientID: step.ClientID, Field: "clientId", Message: "duplicate client id"})
		}

		seen[step.ClientID] = true

		if step.Order != i+1 {
			issues = append(issues, Issue{
				ClientID: step.ClientID,
				Field:    "order",
				Message:  fmt.Sprintf("order %d at position %d", step.Order, i+1),
			})
		}

		issues = append(issues, r.ValidateStep(step)...)
	}

	return issues
}
