// Package editor holds the in-memory state of a workflow's step list while it is being edited.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/google/uuid"
)

// Direction is the way Move shifts a step.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Store is the reducer over the ordered step list. Each transition builds a new
// list from copies of the previous one, so lists returned by Steps are never
// mutated afterwards. A Store is not safe for concurrent use; Session
// serializes access to it.
type Store struct {
	registry *registry.Registry
	logger   *slog.Logger
	newID    func() string
	steps    []models.Step
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the client id generator.
func WithIDGenerator(generate func() string) Option {
	return func(s *Store) {
		s.newID = generate
	}
}

// NewStore creates an empty store.
func NewStore(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		registry: reg,
		logger:   logger,
		newID:    uuid.NewString,
		steps:    []models.Step{},
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Steps returns a copy of the current list.
func (s *Store) Steps() []models.Step {
	return models.CloneSteps(s.steps)
}

// Len returns the number of steps.
func (s *Store) Len() int {
	return len(s.steps)
}

// Replace swaps the whole list, as when a workflow is loaded. Missing configs
// are filled with the action's default and orders are re-derived from list
// position. On error the current list is kept.
func (s *Store) Replace(steps []models.Step) error {
	next := make([]models.Step, 0, len(steps))
	seen := make(map[string]bool, len(steps))

	for _, step := range steps {
		if step.ClientID != "" && seen[step.ClientID] {
			return fmt.Errorf("%w: %s", ErrDuplicateClientID, step.ClientID)
		}

		if step.ClientID == models.TriggerNodeID {
			return fmt.Errorf("%w: %s is reserved", ErrDuplicateClientID, step.ClientID)
		}

		seen[step.ClientID] = true

		if !step.ActionType.Valid() {
			return fmt.Errorf("step %s: %w: %q", step.ClientID, models.ErrUnknownActionType, step.ActionType)
		}

		step = step.Clone()

		if step.Config == nil {
			config, err := s.registry.Default(step.ActionType)
			if err != nil {
				return fmt.Errorf("step %s: %w", step.ClientID, err)
			}

			step.Config = config
		}

		if step.Config.ActionType() != step.ActionType {
			return fmt.Errorf("step %s: %w", step.ClientID, ErrConfigMismatch)
		}

		if step.ClientID == "" {
			step.ClientID = s.newID()
		}

		next = append(next, step)
	}

	s.commit(next)

	return nil
}

// Add inserts a new step of actionType with its default config after the
// step at insertAfterIndex. -1 inserts at the head; an index past the end
// appends.
func (s *Store) Add(actionType models.ActionType, insertAfterIndex int) (models.Step, error) {
	config, err := s.registry.Default(actionType)
	if err != nil {
		return models.Step{}, err
	}

	position := min(max(insertAfterIndex+1, 0), len(s.steps))

	step := models.Step{
		ClientID:   s.newID(),
		ActionType: actionType,
		Config:     config,
	}

	next := make([]models.Step, 0, len(s.steps)+1)
	next = append(next, models.CloneSteps(s.steps[:position])...)
	next = append(next, step)
	next = append(next, models.CloneSteps(s.steps[position:])...)

	s.commit(next)

	return s.steps[position].Clone(), nil
}

// Update replaces the action type, config and custom name of the step with
// the same client id. Order and client id are kept. A nil config takes the
// default of the step's action type.
func (s *Store) Update(step models.Step) (models.Step, error) {
	index := models.IndexOf(s.steps, step.ClientID)
	if index < 0 {
		return models.Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, step.ClientID)
	}

	if !step.ActionType.Valid() {
		return models.Step{}, fmt.Errorf("%w: %q", models.ErrUnknownActionType, step.ActionType)
	}

	step = step.Clone()

	current := s.steps[index]
	updated := current.Clone()
	updated.CustomName = step.CustomName

	switch {
	case step.Config == nil:
		updated.Config = nil

		switched, err := s.registry.SwitchActionType(updated, step.ActionType)
		if err != nil {
			return models.Step{}, err
		}

		updated = switched
	case step.Config.ActionType() != step.ActionType:
		return models.Step{}, fmt.Errorf("%w: %s config for %s step", ErrConfigMismatch, step.Config.ActionType(), step.ActionType)
	default:
		updated.ActionType = step.ActionType
		updated.Config = step.Config
	}

	updated = registry.Normalize(updated)

	next := models.CloneSteps(s.steps)
	next[index] = updated

	s.commit(next)

	return s.steps[index].Clone(), nil
}

// Delete removes the step at index. Out-of-range indices are ignored.
func (s *Store) Delete(index int) bool {
	if index < 0 || index >= len(s.steps) {
		s.logger.Debug("Ignoring delete outside of the step list", "index", index, "length", len(s.steps))

		return false
	}

	next := make([]models.Step, 0, len(s.steps)-1)
	next = append(next, models.CloneSteps(s.steps[:index])...)
	next = append(next, models.CloneSteps(s.steps[index+1:])...)

	s.commit(next)

	return true
}

// Move swaps the step at index with its neighbour in direction. Moving the
// first step up, the last step down or an out-of-range index is ignored.
func (s *Store) Move(index int, direction Direction) bool {
	target := index - 1
	if direction == DirectionDown {
		target = index + 1
	}

	if !direction.Valid() || index < 0 || index >= len(s.steps) || target < 0 || target >= len(s.steps) {
		s.logger.Debug("Ignoring move at the edge of the step list",
			"index", index,
			"direction", direction,
			"length", len(s.steps),
		)

		return false
	}

	next := models.CloneSteps(s.steps)
	next[index], next[target] = next[target], next[index]

	s.commit(next)

	return true
}

// commit installs next as the current list after re-deriving orders and
// refreshing id-referenced branch paths. next must not be shared.
func (s *Store) commit(next []models.Step) {
	orders := make(map[string]int, len(next))

	for i := range next {
		next[i].Order = i + 1
		orders[next[i].ClientID] = i + 1
	}

	for i := range next {
		branch, ok := next[i].Branch()
		if !ok {
			continue
		}

		for k := range branch.Paths {
			path := &branch.Paths[k]
			if path.NextStepID == "" {
				continue
			}

			path.NextStepOrder = orders[path.NextStepID]
		}
	}

	s.steps = next
}
