// Package events defines the events emitted while a workflow's step list is edited and saved.
package events

import (
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "stepflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Editor events.
	StepsCommittedEvent EventType = "workflow.steps.committed"

	// Persistence events.
	StepsSavedEvent      EventType = "workflow.steps.saved"
	StepsSaveFailedEvent EventType = "workflow.steps.save_failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// StepsCommitted carries the full step list after a committed editor transition.
type StepsCommitted struct {
	BaseEvent

	Revision int64         `json:"revision"`
	Steps    []models.Step `json:"steps"`
}

func (s StepsCommitted) GetType() EventType {
	return StepsCommittedEvent
}

type StepsSaved struct {
	BaseEvent

	Revision int64 `json:"revision"`
	Attempts int   `json:"attempts"`
}

func (s StepsSaved) GetType() EventType {
	return StepsSavedEvent
}

type StepsSaveFailed struct {
	BaseEvent

	Revision int64  `json:"revision"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

func (s StepsSaveFailed) GetType() EventType {
	return StepsSaveFailedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
