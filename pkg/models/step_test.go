package models_test

import (
	"encoding/json"
	"testing"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_UnmarshalJSON_DispatchesOnActionType(t *testing.T) {
	t.Parallel()

	payload := `[
		{"clientId":"a","order":1,"actionType":"wait","config":{"duration":3,"unit":"hours"}},
		{"clientId":"b","order":2,"actionType":"branch","config":{"type":"percentage_split","paths":[{"weight":70,"nextStepOrder":3},{"weight":30,"nextStepOrder":4,"nextStepId":"d"}]}},
		{"clientId":"c","order":3,"actionType":"remove_from_workflow","config":{}},
		{"clientId":"d","order":4,"actionType":"send_email","config":null,"customName":"Follow up"}
	]`

	var steps []models.Step
	require.NoError(t, json.Unmarshal([]byte(payload), &steps))
	require.Len(t, steps, 4)

	wait, ok := steps[0].Config.(*models.WaitConfig)
	require.True(t, ok)
	assert.Equal(t, 3, wait.Duration)
	assert.Equal(t, models.UnitHours, wait.Unit)

	branch, ok := steps[1].Branch()
	require.True(t, ok)
	assert.Equal(t, 100, branch.TotalWeight())
	assert.Equal(t, "d", branch.Paths[1].NextStepID)

	assert.IsType(t, &models.RemoveFromWorkflowConfig{}, steps[2].Config)
	assert.Nil(t, steps[3].Config)
	assert.Equal(t, "Follow up", steps[3].CustomName)
}

func TestStep_UnmarshalJSON_UnknownActionType(t *testing.T) {
	t.Parallel()

	var step models.Step
	err := json.Unmarshal([]byte(`{"clientId":"x","order":1,"actionType":"teleport","config":{}}`), &step)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownActionType)
}

func TestStep_MarshalJSON_Shape(t *testing.T) {
	t.Parallel()

	step := models.Step{
		ClientID:   "a",
		Order:      1,
		ActionType: models.ActionWebhook,
		Config:     &models.WebhookConfig{URL: "https://hooks.example.com/x", Method: "POST"},
	}

	data, err := json.Marshal(step)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"clientId":"a","order":1,"actionType":"webhook","config":{"url":"https://hooks.example.com/x","method":"POST"}}`,
		string(data))
}

func TestStep_CloneSharesNoState(t *testing.T) {
	t.Parallel()

	original := models.Step{
		ClientID:   "a",
		Order:      1,
		ActionType: models.ActionUpdateField,
		Config: &models.UpdateFieldConfig{
			FieldPath:      "contact.stage",
			AssignmentType: models.AssignmentRandomPool,
			Values:         []string{"lead", "prospect"},
		},
	}

	clone := original.Clone()
	clone.Config.(*models.UpdateFieldConfig).Values[0] = "customer"
	clone.Config.(*models.UpdateFieldConfig).FieldPath = "contact.owner"

	cfg := original.Config.(*models.UpdateFieldConfig)
	assert.Equal(t, []string{"lead", "prospect"}, cfg.Values)
	assert.Equal(t, "contact.stage", cfg.FieldPath)
}

func TestStep_CloneTypedNilConfig(t *testing.T) {
	t.Parallel()

	configs := []models.StepConfig{
		(*models.WaitConfig)(nil),
		(*models.SendEmailConfig)(nil),
		(*models.UpdateFieldConfig)(nil),
		(*models.ClearFieldConfig)(nil),
		(*models.WebhookConfig)(nil),
		(*models.BranchConfig)(nil),
		(*models.RemoveFromWorkflowConfig)(nil),
		(*models.ScenarioConfig)(nil),
	}

	for _, config := range configs {
		step := models.Step{ClientID: "a", Order: 1, ActionType: config.ActionType(), Config: config}

		clone := step.Clone()
		assert.Nil(t, clone.Config, "%T", config)

		_, ok := clone.Branch()
		assert.False(t, ok)
	}

	assert.Len(t, models.CloneSteps([]models.Step{{ClientID: "a", Config: (*models.WaitConfig)(nil)}}), 1)
}

func TestActionType_Valid(t *testing.T) {
	t.Parallel()

	for _, actionType := range models.ActionTypes {
		assert.True(t, actionType.Valid(), actionType)

		config, err := models.NewConfig(actionType)
		require.NoError(t, err)
		assert.Equal(t, actionType, config.ActionType())
	}

	assert.False(t, models.ActionType("sms").Valid())
	assert.True(t, models.ActionRemoveFromWorkflow.IsTerminal())
	assert.False(t, models.ActionBranch.IsTerminal())
}
