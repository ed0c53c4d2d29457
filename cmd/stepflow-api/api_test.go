package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/stepflow/pkg/channels/gochannel"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/gateway"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app         *fiber.App
	api         *API
	persistence persistence.Persistence
}

func setupTestApp(t *testing.T) testEnv {
	t.Helper()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)

	ctx, cancel := context.WithCancel(context.Background())

	gw, err := startGateway(ctx, true, store, bus, logger)
	require.NoError(t, err)

	api := NewAPI(logger, store, registry.NewDefaultRegistry(logger), bus, gw, otelhelper.NewNoopTracer())

	t.Cleanup(func() {
		_ = api.editor.CloseAll(context.Background())
		cancel()
		_ = bus.Close()
	})

	return testEnv{app: api.App(), api: api, persistence: store}
}

func call(t *testing.T, app *fiber.App, method, url string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func TestAPI_RootEndpoint(t *testing.T) {
	env := setupTestApp(t)

	status, body := call(t, env.app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Stepflow API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	env := setupTestApp(t)

	status, body := call(t, env.app, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	env := setupTestApp(t)

	status, body := call(t, env.app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestAPI_CommittedStepsAreSaved(t *testing.T) {
	env := setupTestApp(t)

	status, _ := call(t, env.app, http.MethodPost, "/workflows/wf-42/session", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, env.app, http.MethodPost, "/workflows/wf-42/steps", map[string]any{"action_type": "wait"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = call(t, env.app, http.MethodPost, "/workflows/wf-42/steps", map[string]any{"action_type": "remove_from_workflow"})
	require.Equal(t, http.StatusCreated, status)

	require.Eventually(t, func() bool {
		_, body := call(t, env.app, http.MethodGet, "/workflows/wf-42/save-status", nil)

		var saveStatus gateway.Status
		if err := json.Unmarshal(body, &saveStatus); err != nil {
			return false
		}

		return saveStatus.State == gateway.StateSaved && saveStatus.SavedRevision == 2
	}, 5*time.Second, 20*time.Millisecond)

	record, err := env.persistence.GetSteps(context.Background(), "wf-42")
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.Revision)
	assert.Len(t, record.Steps, 2)

	status, _ = call(t, env.app, http.MethodDelete, "/workflows/wf-42/session", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body := call(t, env.app, http.MethodPost, "/workflows/wf-42/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"revision":2`)
}

func TestAPI_ShutdownSavesEditsMadeAfterTheSignal(t *testing.T) {
	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() { _ = bus.Close() })

	signalCtx, stopSignal := context.WithCancel(context.Background())
	defer stopSignal()

	busCtx, stopBus := subscriptionContext(signalCtx)
	defer stopBus()

	gw, err := startGateway(busCtx, true, store, bus, logger)
	require.NoError(t, err)

	api := NewAPI(logger, store, registry.NewDefaultRegistry(logger), bus, gw, otelhelper.NewNoopTracer())
	app := api.App()

	status, _ := call(t, app, http.MethodPost, "/workflows/wf-7/session", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/workflows/wf-7/steps", map[string]any{"action_type": "wait"})
	require.Equal(t, http.StatusCreated, status)

	// SIGTERM arrives while a request is still being served.
	stopSignal()

	status, _ = call(t, app, http.MethodPost, "/workflows/wf-7/steps", map[string]any{"action_type": "webhook"})
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, api.Shutdown(context.Background()))

	record, err := store.GetSteps(context.Background(), "wf-7")
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.Revision)
	assert.Len(t, record.Steps, 2)
	assert.Equal(t, int64(2), gw.SavedRevision("wf-7"))
}
