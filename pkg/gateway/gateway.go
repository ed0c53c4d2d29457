// Package gateway saves committed step lists published by editor sessions.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// State is the save state of a workflow's step list.
type State string

const (
	StateIdle   State = "idle"
	StateSaving State = "saving"
	StateSaved  State = "saved"
	StateFailed State = "failed"

	// StateConflict means a newer, different step list is already stored.
	StateConflict State = "conflict"
)

// ErrNotSaved is returned by WaitSaved when the gateway gave up on a revision.
var ErrNotSaved = errors.New("step list was not saved")

// Status reports the last save activity of one workflow.
type Status struct {
	WorkflowID    string    `json:"workflow_id"`
	State         State     `json:"state"`
	Revision      int64     `json:"revision"`
	SavedRevision int64     `json:"saved_revision"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Gateway consumes StepsCommitted events and writes them to a step repository
// with retries. Save results are kept per workflow and optionally announced
// as StepsSaved or StepsSaveFailed events.
type Gateway struct {
	repository persistence.StepRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
	newBackOff func() backoff.BackOff

	mu       sync.RWMutex
	statuses map[string]Status
	changed  chan struct{}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithBackOff replaces the retry policy. The factory is called once per save.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(g *Gateway) {
		g.newBackOff = factory
	}
}

// WithPublisher announces save results on publisher.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(g *Gateway) {
		g.publisher = publisher
	}
}

// DefaultBackOff retries for up to about half a minute.
func DefaultBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	return policy
}

func NewGateway(repository persistence.StepRepository, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		repository: repository,
		logger:     logger,
		newBackOff: DefaultBackOff,
		statuses:   make(map[string]Status),
		changed:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Register subscribes the gateway to committed step lists on subscriber.
func (g *Gateway) Register(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.StepsCommittedEvent, g.HandleStepsCommitted)
}

// HandleStepsCommitted is the event handler for StepsCommitted. Save failures
// are recorded in the status rather than returned, so the message is not redelivered.
func (g *Gateway) HandleStepsCommitted(ctx context.Context, event any) error {
	committed, ok := event.(*events.StepsCommitted)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	_ = g.Save(ctx, &models.WorkflowSteps{
		WorkflowID: committed.WorkflowID,
		Revision:   committed.Revision,
		Steps:      committed.Steps,
		UpdatedAt:  committed.Timestamp,
	})

	return nil
}

// Save writes record, retrying transient failures. A record older than what
// was already saved is skipped. A stale-revision answer from the repository
// counts as saved only when the stored list has the same steps; otherwise the
// workflow is marked as in conflict.
func (g *Gateway) Save(ctx context.Context, record *models.WorkflowSteps) error {
	logger := g.logger.With("workflow_id", record.WorkflowID, "revision", record.Revision)

	if current := g.Status(record.WorkflowID); current.SavedRevision > record.Revision {
		logger.DebugContext(ctx, "Skipping superseded step list", "saved_revision", current.SavedRevision)

		return nil
	}

	g.update(record.WorkflowID, func(status *Status) {
		status.State = StateSaving
		status.Revision = record.Revision
		status.Attempts = 0
		status.LastError = ""
	})

	attempts := 0

	operation := func() error {
		attempts++

		err := g.repository.SaveSteps(ctx, record)
		if persistence.IsStaleRevision(err) || errors.Is(err, persistence.ErrInvalidWorkflowID) {
			return backoff.Permanent(err)
		}

		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "Failed to save step list, retrying", "error", err, "attempt", attempts, "wait", wait)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(g.newBackOff(), ctx), notify)

	switch {
	case err == nil:
		g.markSaved(record, attempts)
		logger.InfoContext(ctx, "Saved step list", "attempts", attempts)
		g.announce(ctx, record.WorkflowID, events.StepsSaved{
			BaseEvent: events.NewBaseEvent(events.StepsSavedEvent, record.WorkflowID),
			Revision:  record.Revision,
			Attempts:  attempts,
		})

		return nil
	case persistence.IsStaleRevision(err) && g.storedMatches(ctx, record):
		g.markSaved(record, attempts)
		logger.InfoContext(ctx, "Step list already stored under a newer revision", "error", err)

		return nil
	case persistence.IsStaleRevision(err):
		g.update(record.WorkflowID, func(status *Status) {
			status.State = StateConflict
			status.Attempts = attempts
			status.LastError = err.Error()
		})
		logger.ErrorContext(ctx, "Stored step list differs from a newer saved revision", "error", err)
		g.announce(ctx, record.WorkflowID, events.StepsSaveFailed{
			BaseEvent: events.NewBaseEvent(events.StepsSaveFailedEvent, record.WorkflowID),
			Revision:  record.Revision,
			Attempts:  attempts,
			Error:     err.Error(),
		})

		return err
	default:
		g.update(record.WorkflowID, func(status *Status) {
			status.State = StateFailed
			status.Attempts = attempts
			status.LastError = err.Error()
		})
		logger.ErrorContext(ctx, "Giving up saving step list", "error", err, "attempts", attempts)
		g.announce(ctx, record.WorkflowID, events.StepsSaveFailed{
			BaseEvent: events.NewBaseEvent(events.StepsSaveFailedEvent, record.WorkflowID),
			Revision:  record.Revision,
			Attempts:  attempts,
			Error:     err.Error(),
		})

		return err
	}
}

// Status returns the save status of workflowID; unknown workflows are idle.
func (g *Gateway) Status(workflowID string) Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	status, ok := g.statuses[workflowID]
	if !ok {
		return Status{WorkflowID: workflowID, State: StateIdle}
	}

	return status
}

// SavedRevision returns the newest revision of workflowID known to be stored.
func (g *Gateway) SavedRevision(workflowID string) int64 {
	return g.Status(workflowID).SavedRevision
}

// WaitSaved blocks until revision of workflowID, or a newer one, is saved.
// It returns ErrNotSaved when the gateway gave up on that revision.
func (g *Gateway) WaitSaved(ctx context.Context, workflowID string, revision int64) error {
	for {
		g.mu.RLock()
		status := g.statuses[workflowID]
		changed := g.changed
		g.mu.RUnlock()

		if status.SavedRevision >= revision {
			return nil
		}

		if (status.State == StateFailed || status.State == StateConflict) && status.Revision >= revision {
			return fmt.Errorf("%w: workflow %s at revision %d: %s", ErrNotSaved, workflowID, status.Revision, status.LastError)
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Gateway) storedMatches(ctx context.Context, record *models.WorkflowSteps) bool {
	stored, err := g.repository.GetSteps(ctx, record.WorkflowID)
	if err != nil {
		g.logger.WarnContext(ctx, "Failed to read stored step list", "workflow_id", record.WorkflowID, "error", err)

		return false
	}

	return sameSteps(stored.Steps, record.Steps)
}

func sameSteps(a, b []models.Step) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}

	left, err := json.Marshal(a)
	if err != nil {
		return false
	}

	right, err := json.Marshal(b)
	if err != nil {
		return false
	}

	return bytes.Equal(left, right)
}

func (g *Gateway) markSaved(record *models.WorkflowSteps, attempts int) {
	g.update(record.WorkflowID, func(status *Status) {
		status.State = StateSaved
		status.Attempts = attempts
		status.SavedRevision = max(status.SavedRevision, record.Revision)
	})
}

func (g *Gateway) update(workflowID string, apply func(status *Status)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, ok := g.statuses[workflowID]
	if !ok {
		status = Status{WorkflowID: workflowID, State: StateIdle}
	}

	apply(&status)
	status.UpdatedAt = time.Now().UTC()
	g.statuses[workflowID] = status

	close(g.changed)
	g.changed = make(chan struct{})
}

func (g *Gateway) announce(ctx context.Context, workflowID string, event eventbus.Event) {
	if g.publisher == nil {
		return
	}

	if err := g.publisher.Publish(ctx, workflowID, event); err != nil {
		g.logger.ErrorContext(ctx, "Failed to publish save result", "event_type", event.GetType(), "error", err)
	}
}
