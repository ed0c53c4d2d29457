package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
)

// Label returns the display label of a step: its custom name, or the action name.
func (r *Registry) Label(step models.Step) string {
	if name := strings.TrimSpace(step.CustomName); name != "" {
		return name
	}

	if def, ok := r.definitions[step.ActionType]; ok {
		return def.Name
	}

	return string(step.ActionType)
}

// Summary renders a one-line description of what the step does. scenarioNames
// resolves scenario ids to names and may be nil.
func Summary(step models.Step, scenarioNames map[string]string) string {
	switch cfg := step.Config.(type) {
	case *models.WaitConfig:
		return fmt.Sprintf("Wait %d %s", cfg.Duration, unitLabel(cfg.Duration, cfg.Unit))
	case *models.SendEmailConfig:
		text := "Send email"
		if cfg.ScenarioID != "" {
			text += " using " + scenarioName(cfg.ScenarioID, scenarioNames)
		}

		if cfg.SubjectOverride != "" {
			text += fmt.Sprintf(" (subject: %q)", cfg.SubjectOverride)
		}

		return text
	case *models.UpdateFieldConfig:
		if cfg.FieldPath == "" {
			return "Update field (not configured)"
		}

		if cfg.AssignmentType == models.AssignmentRandomPool {
			return fmt.Sprintf("Set %s to one of %d values", cfg.FieldPath, len(cfg.Values))
		}

		value := ""
		if len(cfg.Values) > 0 {
			value = cfg.Values[0]
		}

		return fmt.Sprintf("Set %s to %q", cfg.FieldPath, value)
	case *models.ClearFieldConfig:
		if cfg.FieldPath == "" {
			return "Clear field (not configured)"
		}

		return "Clear " + cfg.FieldPath
	case *models.WebhookConfig:
		if cfg.URL == "" {
			return "Webhook (no URL)"
		}

		return cfg.Method + " " + cfg.URL
	case *models.BranchConfig:
		weights := make([]string, len(cfg.Paths))
		for i, path := range cfg.Paths {
			weights[i] = strconv.Itoa(path.Weight) + "%"
		}

		return "Split " + strings.Join(weights, " / ")
	case *models.RemoveFromWorkflowConfig:
		return "Remove from workflow"
	case *models.ScenarioConfig:
		switch {
		case len(cfg.ScenarioIDs) == 0:
			return "No scenario selected"
		case cfg.AssignmentType == models.AssignmentRandomPool && len(cfg.ScenarioIDs) > 1:
			return fmt.Sprintf("Assign one of %d scenarios", len(cfg.ScenarioIDs))
		default:
			return "Assign " + scenarioName(cfg.ScenarioIDs[0], scenarioNames)
		}
	case nil:
		return "Not configured"
	default:
		return string(step.ActionType)
	}
}

func unitLabel(duration int, unit models.TimeUnit) string {
	if duration == 1 {
		return strings.TrimSuffix(string(unit), "s")
	}

	return string(unit)
}

func scenarioName(id string, names map[string]string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}

	return "scenario " + id
}
