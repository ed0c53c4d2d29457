package redis_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	redispersistence "github.com/dukex/stepflow/pkg/persistence/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce     sync.Once
	redisEndpoint string
	redisErr      error
)

func redisAddress(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		container, err := testcontainers.Run(
			ctx, "redis:7-alpine",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("6379/tcp"),
				wait.ForLog("Ready to accept connections"),
			),
		)
		if err != nil {
			redisErr = err

			return
		}

		redisEndpoint, redisErr = container.Endpoint(ctx, "")
	})

	require.NoError(t, redisErr)

	return redisEndpoint
}

func setupPersistence(t *testing.T) *redispersistence.Persistence {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: redisAddress(t)})
	prefix := "stepflow:test:" + uuid.NewString() + ":"

	p := redispersistence.NewPersistenceWithClient(client, slog.Default(), prefix)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return p
}

func TestPersistence_Steps(t *testing.T) {
	p := setupPersistence(t)
	ctx := t.Context()

	require.NoError(t, p.HealthCheck(ctx))

	_, err := p.GetSteps(ctx, "wf-1")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	record := &models.WorkflowSteps{
		WorkflowID: "wf-1",
		Revision:   4,
		Steps: []models.Step{{
			ClientID:   "s1",
			Order:      1,
			ActionType: models.ActionScenario,
			Config: &models.ScenarioConfig{
				AssignmentType: models.AssignmentRandomPool,
				ScenarioIDs:    []string{"sc-1", "sc-2"},
			},
		}},
	}

	require.NoError(t, p.SaveSteps(ctx, record))

	stored, err := p.GetSteps(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.Revision)
	assert.Equal(t, record.Steps, stored.Steps)

	stale := *record
	stale.Revision = 3
	require.ErrorIs(t, p.SaveSteps(ctx, &stale), persistence.ErrStaleRevision)

	require.NoError(t, p.DeleteSteps(ctx, "wf-1"))

	_, err = p.GetSteps(ctx, "wf-1")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestPersistence_Scenarios(t *testing.T) {
	p := setupPersistence(t)
	ctx := t.Context()

	require.NoError(t, p.SaveScenario(ctx, models.ScenarioOption{ID: "sc-2", Name: "Welcome"}))
	require.NoError(t, p.SaveScenario(ctx, models.ScenarioOption{ID: "sc-1", Name: "Follow up"}))
	require.ErrorIs(t, p.SaveScenario(ctx, models.ScenarioOption{ID: "sc-3"}), persistence.ErrInvalidScenario)

	scenarios, err := p.ListScenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ScenarioOption{
		{ID: "sc-1", Name: "Follow up"},
		{ID: "sc-2", Name: "Welcome"},
	}, scenarios)
}
