package gateway_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cenkalti/backoff/v4"
	"github.com/dukex/stepflow/pkg/channels/gochannel"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/gateway"
	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fastRetries(n uint64) gateway.Option {
	return gateway.WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, n)
	})
}

func record(revision int64) *models.WorkflowSteps {
	return &models.WorkflowSteps{
		WorkflowID: "wf-1",
		Revision:   revision,
		Steps: []models.Step{{
			ClientID:   "s1",
			Order:      1,
			ActionType: models.ActionWait,
			Config:     &models.WaitConfig{Duration: 1, Unit: models.UnitDays},
		}},
	}
}

func TestGateway_SaveRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockPersistence{}
	repo.On("SaveSteps", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Twice()
	repo.On("SaveSteps", mock.Anything, mock.Anything).Return(nil).Once()

	g := gateway.NewGateway(repo, slog.Default(), fastRetries(5))

	require.NoError(t, g.Save(t.Context(), record(2)))

	status := g.Status("wf-1")
	assert.Equal(t, gateway.StateSaved, status.State)
	assert.Equal(t, int64(2), status.SavedRevision)
	assert.Equal(t, 3, status.Attempts)
	assert.Empty(t, status.LastError)
	repo.AssertNumberOfCalls(t, "SaveSteps", 3)
}

func TestGateway_SaveGivesUp(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockPersistence{}
	repo.On("SaveSteps", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf-1", mock.AnythingOfType("events.StepsSaveFailed")).Return(nil)

	g := gateway.NewGateway(repo, slog.Default(), fastRetries(2), gateway.WithPublisher(bus))

	err := g.Save(t.Context(), record(1))
	require.Error(t, err)

	status := g.Status("wf-1")
	assert.Equal(t, gateway.StateFailed, status.State)
	assert.Equal(t, 3, status.Attempts)
	assert.Contains(t, status.LastError, "disk full")
	bus.AssertExpectations(t)
}

func TestGateway_StaleRevisionIsNotRetried(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockPersistence{}
	repo.On("SaveSteps", mock.Anything, mock.Anything).
		Return(persistence.NewStaleRevisionError("SaveSteps", "wf-1", 1, 4))
	repo.On("GetSteps", mock.Anything, "wf-1").Return(record(4), nil)

	g := gateway.NewGateway(repo, slog.Default(), fastRetries(5))

	require.NoError(t, g.Save(t.Context(), record(1)))
	assert.Equal(t, gateway.StateSaved, g.Status("wf-1").State)
	assert.Equal(t, int64(1), g.SavedRevision("wf-1"))
	repo.AssertNumberOfCalls(t, "SaveSteps", 1)
}

func TestGateway_StaleRevisionWithDifferentStepsIsAConflict(t *testing.T) {
	t.Parallel()

	stored := record(4)
	stored.Steps = append(stored.Steps, models.Step{
		ClientID:   "s2",
		Order:      2,
		ActionType: models.ActionRemoveFromWorkflow,
		Config:     &models.RemoveFromWorkflowConfig{},
	})

	repo := &mocks.MockPersistence{}
	repo.On("SaveSteps", mock.Anything, mock.Anything).
		Return(persistence.NewStaleRevisionError("SaveSteps", "wf-1", 1, 4))
	repo.On("GetSteps", mock.Anything, "wf-1").Return(stored, nil)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf-1", mock.AnythingOfType("events.StepsSaveFailed")).Return(nil)

	g := gateway.NewGateway(repo, slog.Default(), fastRetries(5), gateway.WithPublisher(bus))

	err := g.Save(t.Context(), record(1))
	require.ErrorIs(t, err, persistence.ErrStaleRevision)

	status := g.Status("wf-1")
	assert.Equal(t, gateway.StateConflict, status.State)
	assert.Equal(t, int64(0), status.SavedRevision)
	assert.Contains(t, status.LastError, "stale")
	bus.AssertExpectations(t)

	err = g.WaitSaved(t.Context(), "wf-1", 1)
	require.ErrorIs(t, err, gateway.ErrNotSaved)
}

func TestGateway_WaitSaved(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockPersistence{}
	repo.On("SaveSteps", mock.Anything, mock.Anything).Return(nil)

	g := gateway.NewGateway(repo, slog.Default(), fastRetries(1))

	require.NoError(t, g.WaitSaved(t.Context(), "wf-1", 0))

	done := make(chan error, 1)

	go func() {
		done <- g.WaitSaved(context.Background(), "wf-1", 2)
	}()

	require.NoError(t, g.Save(t.Context(), record(1)))

	select {
	case err := <-done:
		t.Fatalf("returned before revision 2 was saved: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, g.Save(t.Context(), record(3)))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitSaved did not return after a newer revision was saved")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, g.WaitSaved(ctx, "wf-1", 9), context.Canceled)
}

func TestGateway_SkipsSupersededRecords(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockPersistence{}
	repo.On("SaveSteps", mock.Anything, mock.Anything).Return(nil)

	g := gateway.NewGateway(repo, slog.Default(), fastRetries(1))

	require.NoError(t, g.Save(t.Context(), record(5)))
	require.NoError(t, g.Save(t.Context(), record(3)))

	repo.AssertNumberOfCalls(t, "SaveSteps", 1)
	assert.Equal(t, int64(5), g.Status("wf-1").SavedRevision)
}

func TestGateway_StatusOfUnknownWorkflow(t *testing.T) {
	t.Parallel()

	g := gateway.NewGateway(&mocks.MockPersistence{}, slog.Default())

	status := g.Status("nope")
	assert.Equal(t, gateway.StateIdle, status.State)
	assert.Equal(t, "nope", status.WorkflowID)
	assert.Equal(t, int64(0), g.SavedRevision("nope"))
}

func TestGateway_HandleRejectsUnexpectedEvents(t *testing.T) {
	t.Parallel()

	g := gateway.NewGateway(&mocks.MockPersistence{}, slog.Default())

	require.Error(t, g.HandleStepsCommitted(t.Context(), &events.StepsSaved{}))
}

func TestGateway_SavesCommittedEventsFromBus(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	store := file.NewPersistence(t.TempDir())
	g := gateway.NewGateway(store, slog.Default(), fastRetries(1))
	require.NoError(t, g.Register(bus))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	committed := record(7)
	require.NoError(t, bus.Publish(ctx, "wf-1", events.StepsCommitted{
		BaseEvent: events.NewBaseEvent(events.StepsCommittedEvent, "wf-1"),
		Revision:  committed.Revision,
		Steps:     committed.Steps,
	}))

	require.Eventually(t, func() bool {
		return g.Status("wf-1").SavedRevision == 7
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := store.GetSteps(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, committed.Steps, stored.Steps)
}
