// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/editor"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/registry"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidWorkflowID = errors.New("workflow id cannot be empty")
	ErrInvalidDirection  = errors.New("invalid move direction")

	// Lookup Errors (404 Not Found).
	ErrSessionNotFound = errors.New("no open editor session for workflow")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidWorkflowID) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, models.ErrUnknownActionType) ||
		errors.Is(err, registry.ErrInvalidConfig) ||
		errors.Is(err, editor.ErrConfigMismatch) ||
		errors.Is(err, editor.ErrDuplicateClientID) ||
		errors.Is(err, editor.ErrUnknownCommand) ||
		errors.Is(err, persistence.ErrInvalidWorkflowID) ||
		errors.Is(err, persistence.ErrInvalidScenario)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, editor.ErrStepNotFound) ||
		errors.Is(err, persistence.ErrWorkflowNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, editor.ErrSessionClosed) ||
		errors.Is(err, persistence.ErrStaleRevision)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
