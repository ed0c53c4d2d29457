package registry_test

import (
	"log/slog"
	"testing"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	return registry.NewDefaultRegistry(slog.Default())
}

func TestRegistry_DefaultMatchesActionType(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	for _, actionType := range models.ActionTypes {
		config, err := reg.Default(actionType)
		require.NoError(t, err, actionType)
		require.NotNil(t, config)
		assert.Equal(t, actionType, config.ActionType())
	}
}

func TestRegistry_DefaultShapes(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	tests := []struct {
		actionType models.ActionType
		expected   models.StepConfig
	}{
		{models.ActionWait, &models.WaitConfig{Duration: 1, Unit: models.UnitDays}},
		{models.ActionSendEmail, &models.SendEmailConfig{}},
		{models.ActionUpdateField, &models.UpdateFieldConfig{AssignmentType: models.AssignmentSingle, Values: []string{""}}},
		{models.ActionClearField, &models.ClearFieldConfig{}},
		{models.ActionWebhook, &models.WebhookConfig{Method: "POST"}},
		{models.ActionBranch, &models.BranchConfig{
			Type:  models.BranchTypePercentageSplit,
			Paths: []models.BranchPath{{Weight: 50}, {Weight: 50}},
		}},
		{models.ActionRemoveFromWorkflow, &models.RemoveFromWorkflowConfig{}},
		{models.ActionScenario, &models.ScenarioConfig{AssignmentType: models.AssignmentSingle, ScenarioIDs: []string{}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.actionType), func(t *testing.T) {
			t.Parallel()

			config, err := reg.Default(tt.actionType)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, config)
		})
	}
}

func TestRegistry_DefaultReturnsFreshInstances(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	first, err := reg.Default(models.ActionBranch)
	require.NoError(t, err)

	first.(*models.BranchConfig).Paths[0].Weight = 90

	second, err := reg.Default(models.ActionBranch)
	require.NoError(t, err)
	assert.Equal(t, 50, second.(*models.BranchConfig).Paths[0].Weight)
}

func TestRegistry_DefaultUnknownType(t *testing.T) {
	t.Parallel()

	_, err := newRegistry(t).Default("sms")
	require.ErrorIs(t, err, models.ErrUnknownActionType)
}

func TestRegistry_HealthCheck(t *testing.T) {
	t.Parallel()

	message, ok := newRegistry(t).HealthCheck()
	assert.True(t, ok)
	assert.Equal(t, "Registry is healthy", message)

	message, ok = registry.NewRegistry(slog.Default()).HealthCheck()
	assert.False(t, ok)
	assert.Contains(t, message, "wait")
}

func TestRegistry_DefinitionsInPaletteOrder(t *testing.T) {
	t.Parallel()

	defs := newRegistry(t).Definitions()
	require.Len(t, defs, len(models.ActionTypes))

	for i, def := range defs {
		assert.Equal(t, models.ActionTypes[i], def.Type)
		assert.NotEmpty(t, def.Name)
		assert.NotNil(t, def.Schema)
	}

	remove, ok := newRegistry(t).Definition(models.ActionRemoveFromWorkflow)
	require.True(t, ok)
	assert.True(t, remove.Terminal)
}

func TestSwitchActionType_ReplacesConfig(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	step := models.Step{
		ClientID:   "s1",
		Order:      3,
		ActionType: models.ActionWait,
		Config:     &models.WaitConfig{Duration: 5, Unit: models.UnitHours},
		CustomName: "Cool down",
	}

	switched, err := reg.SwitchActionType(step, models.ActionWebhook)
	require.NoError(t, err)

	assert.Equal(t, models.ActionWebhook, switched.ActionType)
	assert.Equal(t, &models.WebhookConfig{Method: "POST"}, switched.Config)
	assert.Equal(t, "s1", switched.ClientID)
	assert.Equal(t, 3, switched.Order)
	assert.Equal(t, "Cool down", switched.CustomName)

	same, err := reg.SwitchActionType(step, models.ActionWait)
	require.NoError(t, err)
	assert.Equal(t, step.Config, same.Config)
}
