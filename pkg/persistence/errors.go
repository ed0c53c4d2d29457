// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates no step list was saved for the given workflow.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrStaleRevision indicates a newer revision of the step list is already stored.
	ErrStaleRevision = errors.New("stale step list revision")

	// ErrInvalidWorkflowID indicates an empty workflow id or one that cannot be used as a storage key.
	ErrInvalidWorkflowID = errors.New("invalid workflow id")

	// ErrInvalidScenario indicates a scenario without id or name.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetSteps", "SaveSteps")
	WorkflowID string
	Revision   int64
	Err        error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	target := e.WorkflowID
	if e.Revision > 0 {
		target = fmt.Sprintf("%s at revision %d", e.WorkflowID, e.Revision)
	}

	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, target, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, target, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// NewStaleRevisionError reports that revision is older than the stored one.
func NewStaleRevisionError(op, workflowID string, revision, stored int64) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Revision:   revision,
		Err:        ErrStaleRevision,
		Message:    fmt.Sprintf("stored revision is %d", stored),
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsStaleRevision checks if an error indicates an out-of-date save.
func IsStaleRevision(err error) bool {
	return errors.Is(err, ErrStaleRevision)
}
