package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/stepflow/pkg/channels/gochannel"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/gateway"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowSaves struct {
	persistence.Persistence

	delay time.Duration
}

func (s slowSaves) SaveSteps(ctx context.Context, record *models.WorkflowSteps) error {
	time.Sleep(s.delay)

	return s.Persistence.SaveSteps(ctx, record)
}

func addSteps(t *testing.T, service *Editor, workflowID string, actionTypes ...models.ActionType) {
	t.Helper()

	for _, actionType := range actionTypes {
		_, _, err := service.AddStep(t.Context(), workflowID, actionType, 99)
		require.NoError(t, err)
	}
}

func TestEditor_ReopenBeforeSaveKeepsCommittedSteps(t *testing.T) {
	t.Parallel()

	service := newTestEditor(t, file.NewPersistence(t.TempDir()))

	_, err := service.Open(t.Context(), "wf-1")
	require.NoError(t, err)

	addSteps(t, service, "wf-1", models.ActionWait, models.ActionSendEmail, models.ActionWait)
	require.NoError(t, service.Close(t.Context(), "wf-1"))

	snapshot, err := service.Open(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), snapshot.Revision)
	assert.Len(t, snapshot.Steps, 3)

	_, snapshot, err = service.AddStep(t.Context(), "wf-1", models.ActionWebhook, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(4), snapshot.Revision)
	assert.Len(t, snapshot.Steps, 4)
}

func TestEditor_ReopenWhileGatewayIsSaving(t *testing.T) {
	t.Parallel()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() { _ = bus.Close() })

	gw := gateway.NewGateway(slowSaves{Persistence: store, delay: 100 * time.Millisecond}, logger)
	require.NoError(t, gw.Register(bus))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	service := NewEditor(registry.NewDefaultRegistry(logger), store, bus, otelhelper.NewNoopTracer(), logger,
		WithSaveTracker(gw),
	)
	t.Cleanup(func() { _ = service.CloseAll(context.Background()) })

	_, err = service.Open(t.Context(), "wf-1")
	require.NoError(t, err)

	addSteps(t, service, "wf-1", models.ActionWait, models.ActionSendEmail, models.ActionWait)
	require.NoError(t, service.Close(t.Context(), "wf-1"))

	snapshot, err := service.Open(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), snapshot.Revision)
	require.Len(t, snapshot.Steps, 3)

	addSteps(t, service, "wf-1", models.ActionWebhook)
	require.NoError(t, service.Close(t.Context(), "wf-1"))

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	require.NoError(t, service.WaitForSaves(waitCtx))

	record, err := store.GetSteps(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), record.Revision)
	require.Len(t, record.Steps, 4)
	assert.Equal(t, models.ActionWebhook, record.Steps[3].ActionType)

	status := gw.Status("wf-1")
	assert.Equal(t, gateway.StateSaved, status.State)
	assert.Equal(t, int64(4), status.SavedRevision)

	service.mu.Lock()
	assert.Empty(t, service.unsaved)
	service.mu.Unlock()

	snapshot, err = service.Open(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), snapshot.Revision)
}

func TestEditor_WaitForSavesWithoutTracker(t *testing.T) {
	t.Parallel()

	service := newTestEditor(t, file.NewPersistence(t.TempDir()))

	_, err := service.Open(t.Context(), "wf-1")
	require.NoError(t, err)

	addSteps(t, service, "wf-1", models.ActionWait)
	require.NoError(t, service.CloseAll(t.Context()))

	require.NoError(t, service.WaitForSaves(t.Context()))
}
