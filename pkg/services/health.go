package services

import (
	"context"

	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/registry"
)

// Health reports the state of the registry and the persistence layer.
type Health struct {
	registry    *registry.Registry
	persistence persistence.Persistence
}

func NewHealth(reg *registry.Registry, p persistence.Persistence) *Health {
	return &Health{registry: reg, persistence: p}
}

// Check returns a message per component and whether all are healthy.
func (h *Health) Check(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{}
	healthy := true

	if h.registry == nil {
		checks["registry"] = "Registry not initialized"
		healthy = false
	} else {
		message, ok := h.registry.HealthCheck()
		checks["registry"] = message
		healthy = healthy && ok
	}

	if h.persistence == nil {
		checks["persistence"] = "Persistence layer not initialized"

		return checks, false
	}

	if err := h.persistence.HealthCheck(ctx); err != nil {
		checks["persistence"] = "Persistence layer is unhealthy: " + err.Error()

		return checks, false
	}

	checks["persistence"] = "Persistence layer is healthy"

	return checks, healthy
}
