package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukex/stepflow/pkg/editor"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SaveTracker reports which revision of a workflow's step list is stored.
type SaveTracker interface {
	SavedRevision(workflowID string) int64
	WaitSaved(ctx context.Context, workflowID string, revision int64) error
}

// Editor keeps one editor.Session per open workflow and routes commands to it.
//
// The last snapshot of a closed session is kept until it is known to be
// stored. Reopening the workflow before that starts from the snapshot, so a
// save still in flight can never roll the list or its revision back.
type Editor struct {
	registry    *registry.Registry
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracker     SaveTracker
	scenarios   *Scenarios
	tracer      trace.Tracer
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*editor.Session
	unsaved  map[string]editor.Snapshot
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithSaveTracker lets the editor forget closed snapshots once tracker reports
// them saved, and wait for them in WaitForSaves.
func WithSaveTracker(tracker SaveTracker) EditorOption {
	return func(e *Editor) {
		e.tracker = tracker
	}
}

// NewEditor creates an editor service. publisher may be nil, in which case
// committed step lists are not published.
func NewEditor(
	reg *registry.Registry,
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
	opts ...EditorOption,
) *Editor {
	e := &Editor{
		registry:    reg,
		persistence: p,
		publisher:   publisher,
		scenarios:   NewScenarios(p, logger),
		tracer:      tracer,
		logger:      logger.With("module", "editor"),
		sessions:    make(map[string]*editor.Session),
		unsaved:     make(map[string]editor.Snapshot),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Open returns the session of workflowID, loading its saved steps if no
// session is open yet. A workflow that was never saved opens empty.
func (e *Editor) Open(ctx context.Context, workflowID string) (editor.Snapshot, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.open",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	if strings.TrimSpace(workflowID) == "" {
		return editor.Snapshot{}, ErrInvalidWorkflowID
	}

	if session, ok := e.lookup(workflowID); ok {
		return session.Snapshot(), nil
	}

	record, err := e.persistence.GetSteps(ctx, workflowID)

	switch {
	case persistence.IsWorkflowNotFound(err):
		record = &models.WorkflowSteps{WorkflowID: workflowID, Steps: []models.Step{}}
	case err != nil:
		otelhelper.SetError(span, err)

		return editor.Snapshot{}, fmt.Errorf("failed to load steps: %w", err)
	}

	steps, revision := record.Steps, record.Revision

	if unsaved, ok := e.unsavedSnapshot(workflowID); ok && unsaved.Revision > revision {
		e.logger.InfoContext(ctx, "Reopening from a snapshot that is not saved yet",
			"workflow_id", workflowID,
			"revision", unsaved.Revision,
			"stored_revision", revision,
		)

		steps, revision = unsaved.Steps, unsaved.Revision
	}

	store := editor.NewStore(e.registry, e.logger)

	err = store.Replace(steps)
	if err != nil {
		otelhelper.SetError(span, err)

		return editor.Snapshot{}, &ServiceError{
			Op:      "editor.open",
			Code:    "invalid_saved_steps",
			Message: "saved steps cannot be loaded: " + err.Error(),
			Err:     err,
		}
	}

	session := editor.NewSession(workflowID, revision, store, e.publisher, e.logger)

	e.mu.Lock()

	if existing, ok := e.sessions[workflowID]; ok {
		e.mu.Unlock()

		_ = session.Close()

		return existing.Snapshot(), nil
	}

	e.sessions[workflowID] = session
	delete(e.unsaved, workflowID)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Int64(otelhelper.RevisionKey, revision),
		attribute.Int(otelhelper.StepCountKey, len(steps)),
	)
	e.logger.InfoContext(ctx, "Opened editor session", "workflow_id", workflowID, "revision", revision)

	return session.Snapshot(), nil
}

// Close ends the session of workflowID after its pending changes are published.
func (e *Editor) Close(ctx context.Context, workflowID string) error {
	e.mu.Lock()
	session, ok := e.sessions[workflowID]
	delete(e.sessions, workflowID)

	if ok {
		e.rememberLocked(session.Snapshot())
	}
	e.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	e.logger.InfoContext(ctx, "Closing editor session", "workflow_id", workflowID)

	err := session.Close()
	e.remember(session.Snapshot())
	e.pruneSaved()

	return err
}

// CloseAll ends every open session.
func (e *Editor) CloseAll(ctx context.Context) error {
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]*editor.Session)

	for _, session := range sessions {
		e.rememberLocked(session.Snapshot())
	}
	e.mu.Unlock()

	var errs []error

	for id, session := range sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}

		e.remember(session.Snapshot())
	}

	e.pruneSaved()

	e.logger.InfoContext(ctx, "Closed editor sessions", "count", len(sessions))

	return errors.Join(errs...)
}

// WaitForSaves blocks until the last revision of every closed session is
// saved. Without a save tracker it returns at once.
func (e *Editor) WaitForSaves(ctx context.Context) error {
	if e.tracker == nil {
		return nil
	}

	e.mu.Lock()
	pending := make(map[string]int64, len(e.unsaved))
	for id, snapshot := range e.unsaved {
		pending[id] = snapshot.Revision
	}
	e.mu.Unlock()

	var errs []error

	for id, revision := range pending {
		if err := e.tracker.WaitSaved(ctx, id, revision); err != nil {
			errs = append(errs, fmt.Errorf("workflow %s revision %d: %w", id, revision, err))
		}
	}

	e.pruneSaved()

	return errors.Join(errs...)
}

// OpenSessions returns the number of open sessions.
func (e *Editor) OpenSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.sessions)
}

// Dispatch applies cmd to the session of workflowID.
func (e *Editor) Dispatch(ctx context.Context, workflowID string, cmd editor.Command) (editor.Result, editor.Snapshot, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.dispatch",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.CommandKey, fmt.Sprintf("%T", cmd)),
	)
	defer span.End()

	session, ok := e.lookup(workflowID)
	if !ok {
		return editor.Result{}, editor.Snapshot{}, ErrSessionNotFound
	}

	result, snapshot, err := session.Dispatch(ctx, cmd)
	if err != nil {
		otelhelper.SetError(span, err)

		return editor.Result{}, editor.Snapshot{}, fmt.Errorf("failed to apply command: %w", err)
	}

	span.SetAttributes(
		attribute.Int64(otelhelper.RevisionKey, snapshot.Revision),
		attribute.Bool("stepflow.editor.changed", result.Changed),
	)

	return result, snapshot, nil
}

// AddStep inserts a step of actionType after insertAfter.
func (e *Editor) AddStep(ctx context.Context, workflowID string, actionType models.ActionType, insertAfter int) (models.Step, editor.Snapshot, error) {
	result, snapshot, err := e.Dispatch(ctx, workflowID, editor.AddStep{ActionType: actionType, InsertAfter: insertAfter})
	if err != nil {
		return models.Step{}, editor.Snapshot{}, err
	}

	return *result.Step, snapshot, nil
}

// UpdateStep replaces the type, config and name of the step with step.ClientID.
func (e *Editor) UpdateStep(ctx context.Context, workflowID string, step models.Step) (models.Step, editor.Snapshot, error) {
	result, snapshot, err := e.Dispatch(ctx, workflowID, editor.UpdateStep{Step: step})
	if err != nil {
		return models.Step{}, editor.Snapshot{}, err
	}

	return *result.Step, snapshot, nil
}

// DeleteStep removes the step with clientID.
func (e *Editor) DeleteStep(ctx context.Context, workflowID, clientID string) (editor.Snapshot, error) {
	result, snapshot, err := e.Dispatch(ctx, workflowID, editor.DeleteStep{Index: -1, ClientID: clientID})
	if err != nil {
		return editor.Snapshot{}, err
	}

	if !result.Changed {
		return editor.Snapshot{}, editor.ErrStepNotFound
	}

	return snapshot, nil
}

// MoveStep swaps the step with clientID and its neighbour in direction. A
// move past either end is a no-op and reported as unchanged.
func (e *Editor) MoveStep(ctx context.Context, workflowID, clientID string, direction editor.Direction) (bool, editor.Snapshot, error) {
	if !direction.Valid() {
		return false, editor.Snapshot{}, ErrInvalidDirection
	}

	session, ok := e.lookup(workflowID)
	if !ok {
		return false, editor.Snapshot{}, ErrSessionNotFound
	}

	if models.IndexOf(session.Steps(), clientID) < 0 {
		return false, editor.Snapshot{}, editor.ErrStepNotFound
	}

	result, snapshot, err := e.Dispatch(ctx, workflowID, editor.MoveStep{Index: -1, ClientID: clientID, Direction: direction})
	if err != nil {
		return false, editor.Snapshot{}, err
	}

	return result.Changed, snapshot, nil
}

// Snapshot returns the committed state of workflowID.
func (e *Editor) Snapshot(_ context.Context, workflowID string) (editor.Snapshot, error) {
	session, ok := e.lookup(workflowID)
	if !ok {
		return editor.Snapshot{}, ErrSessionNotFound
	}

	return session.Snapshot(), nil
}

// Graph compiles the current steps of workflowID. Scenario names are looked
// up for node summaries; if the catalog is unavailable ids are shown instead.
func (e *Editor) Graph(ctx context.Context, workflowID string) (models.Graph, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.graph",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	snapshot, err := e.Snapshot(ctx, workflowID)
	if err != nil {
		return models.Graph{}, err
	}

	names, err := e.scenarios.Names(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "Scenario names unavailable for graph", "workflow_id", workflowID, "error", err)
	}

	compiled := graph.Compile(snapshot.Steps,
		graph.WithLabeler(e.registry),
		graph.WithScenarioNames(names),
	)

	span.SetAttributes(attribute.Int(otelhelper.StepCountKey, len(snapshot.Steps)))

	return compiled, nil
}

// Analysis is the structural report of a workflow together with per-step
// validation findings.
type Analysis struct {
	WorkflowID string           `json:"workflow_id"`
	Revision   int64            `json:"revision"`
	Report     graph.Report     `json:"report"`
	Issues     []registry.Issue `json:"issues"`
}

// Analyze reports cycles, dangling references, unreachable steps and config
// problems of workflowID.
func (e *Editor) Analyze(ctx context.Context, workflowID string) (Analysis, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.analyze",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	snapshot, err := e.Snapshot(ctx, workflowID)
	if err != nil {
		return Analysis{}, err
	}

	report, err := graph.Analyze(snapshot.Steps)
	if err != nil {
		otelhelper.SetError(span, err)

		return Analysis{}, fmt.Errorf("failed to analyze steps: %w", err)
	}

	issues := e.registry.ValidateSteps(snapshot.Steps)
	if issues == nil {
		issues = []registry.Issue{}
	}

	return Analysis{
		WorkflowID: workflowID,
		Revision:   snapshot.Revision,
		Report:     report,
		Issues:     issues,
	}, nil
}

func (e *Editor) unsavedSnapshot(workflowID string) (editor.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, ok := e.unsaved[workflowID]

	return snapshot, ok
}

// remember records the final snapshot of a closed session, unless the
// workflow was reopened in the meantime.
func (e *Editor) remember(snapshot editor.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, reopened := e.sessions[snapshot.WorkflowID]; reopened {
		return
	}

	e.rememberLocked(snapshot)
}

func (e *Editor) rememberLocked(snapshot editor.Snapshot) {
	if snapshot.Revision == 0 {
		return
	}

	if current, ok := e.unsaved[snapshot.WorkflowID]; ok && current.Revision >= snapshot.Revision {
		return
	}

	e.unsaved[snapshot.WorkflowID] = snapshot
}

func (e *Editor) pruneSaved() {
	if e.tracker == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, snapshot := range e.unsaved {
		if e.tracker.SavedRevision(id) >= snapshot.Revision {
			delete(e.unsaved, id)
		}
	}
}

func (e *Editor) lookup(workflowID string) (*editor.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[workflowID]

	return session, ok
}
