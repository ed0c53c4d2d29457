package services

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScenarios_SaveAndList(t *testing.T) {
	t.Parallel()

	service := NewScenarios(file.NewPersistence(t.TempDir()), slog.Default())

	scenarios, err := service.List(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, scenarios)
	assert.Empty(t, scenarios)

	require.NoError(t, service.Save(t.Context(), models.ScenarioOption{ID: "sc-1", Name: "Welcome"}))

	names, err := service.Names(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sc-1": "Welcome"}, names)
}

func TestScenarios_SaveValidates(t *testing.T) {
	t.Parallel()

	service := NewScenarios(&mocks.MockPersistence{}, slog.Default())

	err := service.Save(t.Context(), models.ScenarioOption{ID: "sc-1"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestScenarios_ListFailure(t *testing.T) {
	t.Parallel()

	p := &mocks.MockPersistence{}
	p.On("ListScenarios", mock.Anything).Return(nil, errors.New("boom"))

	service := NewScenarios(p, slog.Default())

	_, err := service.List(t.Context())
	require.Error(t, err)

	_, err = service.Names(t.Context())
	require.Error(t, err)
}
