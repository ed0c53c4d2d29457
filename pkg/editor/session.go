package editor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/models"
)

const publishTimeout = 10 * time.Second

// Snapshot is an immutable view of a session's step list.
type Snapshot struct {
	WorkflowID string        `json:"workflow_id"`
	Revision   int64         `json:"revision"`
	Steps      []models.Step `json:"steps"`
}

type request struct {
	cmd   Command
	reply chan response
}

type response struct {
	result   Result
	snapshot *Snapshot
	err      error
}

// Session owns the Store of one workflow. Commands are applied one at a time
// by a single goroutine; reads are served from the last committed snapshot
// and never wait for the writer. Every committed change is handed to an
// outbox that publishes StepsCommitted events in revision order. Snapshots
// that pile up while a publish is in flight are coalesced into the newest.
type Session struct {
	workflowID string
	store      *Store
	publisher  eventbus.EventPublisher
	logger     *slog.Logger

	requests chan request
	snapshot atomic.Pointer[Snapshot]

	outboxMu sync.Mutex
	pending  *Snapshot
	notify   chan struct{}

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession starts a session over store, whose current list is taken as
// revision. publisher may be nil, in which case nothing is published.
func NewSession(workflowID string, revision int64, store *Store, publisher eventbus.EventPublisher, logger *slog.Logger) *Session {
	s := &Session{
		workflowID: workflowID,
		store:      store,
		publisher:  publisher,
		logger:     logger.With("workflow_id", workflowID),
		requests:   make(chan request),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	s.snapshot.Store(&Snapshot{
		WorkflowID: workflowID,
		Revision:   revision,
		Steps:      store.Steps(),
	})

	s.wg.Add(2)

	go s.run()
	go s.drainOutbox()

	return s
}

// WorkflowID returns the id of the edited workflow.
func (s *Session) WorkflowID() string {
	return s.workflowID
}

// Snapshot returns the last committed state. The returned steps are a copy.
func (s *Session) Snapshot() Snapshot {
	current := s.snapshot.Load()

	return Snapshot{
		WorkflowID: current.WorkflowID,
		Revision:   current.Revision,
		Steps:      models.CloneSteps(current.Steps),
	}
}

// Steps returns a copy of the last committed step list.
func (s *Session) Steps() []models.Step {
	return s.Snapshot().Steps
}

// Dispatch queues cmd and waits for it to be applied. The returned snapshot
// is the state right after cmd, whether or not it changed anything.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (Result, Snapshot, error) {
	req := request{cmd: cmd, reply: make(chan response, 1)}

	select {
	case s.requests <- req:
	case <-s.done:
		return Result{}, Snapshot{}, ErrSessionClosed
	case <-ctx.Done():
		return Result{}, Snapshot{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		if resp.err != nil {
			return Result{}, Snapshot{}, resp.err
		}

		return resp.result, *resp.snapshot, nil
	case <-ctx.Done():
		return Result{}, Snapshot{}, ctx.Err()
	}
}

// Close stops the session after publishing whatever the outbox still holds.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.wg.Wait()

	return nil
}

func (s *Session) run() {
	defer s.wg.Done()
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		case req := <-s.requests:
			req.reply <- s.apply(req.cmd)
		}
	}
}

func (s *Session) apply(cmd Command) response {
	result, err := s.store.Apply(cmd)
	if err != nil {
		s.logger.Debug("Rejected editor command", "command", commandName(cmd), "error", err)

		return response{err: err}
	}

	current := s.snapshot.Load()
	if !result.Changed {
		return response{result: result, snapshot: cloneSnapshot(current)}
	}

	next := &Snapshot{
		WorkflowID: s.workflowID,
		Revision:   current.Revision + 1,
		Steps:      s.store.Steps(),
	}

	s.snapshot.Store(next)
	s.enqueue(next)

	s.logger.Debug("Committed editor command",
		"command", commandName(cmd),
		"revision", next.Revision,
		"steps", len(next.Steps),
	)

	return response{result: result, snapshot: cloneSnapshot(next)}
}

func (s *Session) enqueue(snapshot *Snapshot) {
	if s.publisher == nil {
		return
	}

	s.outboxMu.Lock()
	s.pending = snapshot
	s.outboxMu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Session) takePending() *Snapshot {
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()

	pending := s.pending
	s.pending = nil

	return pending
}

func (s *Session) drainOutbox() {
	defer s.wg.Done()

	for {
		select {
		case <-s.notify:
			s.publish(s.takePending())
		case <-s.stopped:
			s.publish(s.takePending())

			return
		}
	}
}

func (s *Session) publish(snapshot *Snapshot) {
	if snapshot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event := events.StepsCommitted{
		BaseEvent: events.NewBaseEvent(events.StepsCommittedEvent, snapshot.WorkflowID),
		Revision:  snapshot.Revision,
		Steps:     snapshot.Steps,
	}

	if err := s.publisher.Publish(ctx, snapshot.WorkflowID, event); err != nil {
		s.logger.Error("Failed to publish committed steps", "revision", snapshot.Revision, "error", err)

		return
	}

	s.logger.Debug("Published committed steps", "revision", snapshot.Revision)
}

func cloneSnapshot(snapshot *Snapshot) *Snapshot {
	return &Snapshot{
		WorkflowID: snapshot.WorkflowID,
		Revision:   snapshot.Revision,
		Steps:      models.CloneSteps(snapshot.Steps),
	}
}

func commandName(cmd Command) string {
	switch cmd.(type) {
	case AddStep:
		return "add"
	case UpdateStep:
		return "update"
	case DeleteStep:
		return "delete"
	case MoveStep:
		return "move"
	case ReplaceSteps:
		return "replace"
	default:
		return "unknown"
	}
}
