package services

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHealth_Check(t *testing.T) {
	t.Parallel()

	reg := registry.NewDefaultRegistry(slog.Default())

	failing := &mocks.MockPersistence{}
	failing.On("HealthCheck", mock.Anything).Return(errors.New("down"))

	tests := []struct {
		name    string
		health  *Health
		healthy bool
		message string
	}{
		{"healthy", NewHealth(reg, file.NewPersistence(t.TempDir())), true, "Persistence layer is healthy"},
		{"persistence down", NewHealth(reg, failing), false, "Persistence layer is unhealthy: down"},
		{"no persistence", NewHealth(reg, nil), false, "Persistence layer not initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checks, healthy := tt.health.Check(t.Context())
			assert.Equal(t, tt.healthy, healthy)
			assert.Equal(t, tt.message, checks["persistence"])
			assert.Equal(t, "Registry is healthy", checks["registry"])
		})
	}
}
