package editor

import (
	"fmt"

	"github.com/dukex/stepflow/pkg/models"
)

// Command is a single editor transition. Commands are plain values so they
// can be queued and replayed.
type Command interface {
	apply(s *Store) (Result, error)
}

// Result describes the outcome of an applied command.
type Result struct {
	// Changed is false when the command was a no-op.
	Changed bool `json:"changed"`

	// Step is the added or updated step, when there is one.
	Step *models.Step `json:"step,omitempty"`
}

// AddStep inserts a default step of ActionType after InsertAfter (-1 for the head).
type AddStep struct {
	ActionType  models.ActionType
	InsertAfter int
}

// UpdateStep replaces the editable fields of the step with Step.ClientID.
type UpdateStep struct {
	Step models.Step
}

// DeleteStep removes a step. ClientID takes precedence over Index when set.
type DeleteStep struct {
	Index    int
	ClientID string
}

// MoveStep shifts a step one position. ClientID takes precedence over Index when set.
type MoveStep struct {
	Index     int
	ClientID  string
	Direction Direction
}

// ReplaceSteps swaps the whole list.
type ReplaceSteps struct {
	Steps []models.Step
}

func (c AddStep) apply(s *Store) (Result, error) {
	step, err := s.Add(c.ActionType, c.InsertAfter)
	if err != nil {
		return Result{}, err
	}

	return Result{Changed: true, Step: &step}, nil
}

func (c UpdateStep) apply(s *Store) (Result, error) {
	step, err := s.Update(c.Step)
	if err != nil {
		return Result{}, err
	}

	return Result{Changed: true, Step: &step}, nil
}

func (c DeleteStep) apply(s *Store) (Result, error) {
	return Result{Changed: s.Delete(resolveIndex(s, c.Index, c.ClientID))}, nil
}

func (c MoveStep) apply(s *Store) (Result, error) {
	return Result{Changed: s.Move(resolveIndex(s, c.Index, c.ClientID), c.Direction)}, nil
}

func (c ReplaceSteps) apply(s *Store) (Result, error) {
	if err := s.Replace(c.Steps); err != nil {
		return Result{}, err
	}

	return Result{Changed: true}, nil
}

// Apply runs cmd against the store.
func (s *Store) Apply(cmd Command) (Result, error) {
	if cmd == nil {
		return Result{}, fmt.Errorf("%w: nil", ErrUnknownCommand)
	}

	return cmd.apply(s)
}

func resolveIndex(s *Store, index int, clientID string) int {
	if clientID != "" {
		return models.IndexOf(s.steps, clientID)
	}

	return index
}
