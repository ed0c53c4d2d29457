// Package registry maps workflow step action types to their default configuration,
// JSON schema, validation rules and display text.
package registry

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Definition describes one action type of the step palette.
type Definition struct {
	Type        models.ActionType `json:"type"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Terminal    bool              `json:"terminal"`
	Schema      map[string]any    `json:"schema"`

	// Default builds a fresh default configuration. It must never return nil.
	Default func() models.StepConfig `json:"-"`
}

// Registry maps action types to their definitions. It hands out default
// configs, validates configs against their struct tags and normalizes steps
// when their action type changes. Register all definitions before the
// Registry is shared; lookups are safe for concurrent use once it is.
type Registry struct {
	logger      *slog.Logger
	definitions map[models.ActionType]Definition
	validate    *validator.Validate
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:      log,
		definitions: make(map[models.ActionType]Definition),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// NewDefaultRegistry creates a registry holding every built-in action type.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	reg := NewRegistry(log)
	reg.RegisterDefaultActions()

	return reg
}

// RegisterDefaultActions registers the built-in definitions.
func (r *Registry) RegisterDefaultActions() {
	for _, def := range builtinDefinitions() {
		r.Register(def)
	}
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) {
	r.definitions[def.Type] = def
	r.logger.Debug("Registered action type", "action_type", def.Type)
}

// Definition returns the definition registered for actionType.
func (r *Registry) Definition(actionType models.ActionType) (Definition, bool) {
	def, ok := r.definitions[actionType]

	return def, ok
}

// Definitions returns all registered definitions in palette order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.definitions))
	for _, actionType := range models.ActionTypes {
		if def, ok := r.definitions[actionType]; ok {
			defs = append(defs, def)
		}
	}

	return defs
}

// Default returns a fresh default configuration for actionType.
func (r *Registry) Default(actionType models.ActionType) (models.StepConfig, error) {
	def, ok := r.definitions[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownActionType, actionType)
	}

	return def.Default(), nil
}

// HealthCheck reports whether every action type has a definition.
func (r *Registry) HealthCheck() (string, bool) {
	var missing []string

	for _, actionType := range models.ActionTypes {
		if _, ok := r.definitions[actionType]; !ok {
			missing = append(missing, string(actionType))
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return fmt.Sprintf("Registry is missing action types: %v", missing), false
	}

	return "Registry is healthy", true
}
