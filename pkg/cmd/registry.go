// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/registry"
)

// NewRegistry returns a registry with every built-in action and fails if one is missing.
func NewRegistry(logger *slog.Logger) (*registry.Registry, error) {
	reg := registry.NewDefaultRegistry(logger)

	message, ok := reg.HealthCheck()
	if !ok {
		return nil, fmt.Errorf("registry incomplete: %s", message)
	}

	logger.Debug("Registry ready", "actions", len(reg.Definitions()))

	return reg, nil
}
