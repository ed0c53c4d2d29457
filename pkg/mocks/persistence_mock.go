package mocks

import (
	"context"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) GetSteps(ctx context.Context, workflowID string) (*models.WorkflowSteps, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowSteps), args.Error(1)
}

func (m *MockPersistence) SaveSteps(ctx context.Context, record *models.WorkflowSteps) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockPersistence) DeleteSteps(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)

	return args.Error(0)
}

func (m *MockPersistence) ListScenarios(ctx context.Context) ([]models.ScenarioOption, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.ScenarioOption), args.Error(1)
}

func (m *MockPersistence) SaveScenario(ctx context.Context, scenario models.ScenarioOption) error {
	args := m.Called(ctx, scenario)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
