package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/gateway"
	"github.com/dukex/stepflow/pkg/persistence"
)

// subscriptionContext returns a context for the event bus subscription that
// is not cancelled with ctx. The caller cancels it once the API has shut
// down, after the last committed step lists were delivered.
func subscriptionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(ctx))
}

// startGateway subscribes a gateway to committed step lists. When disabled
// the bus still delivers to any gateway running in another process.
func startGateway(
	ctx context.Context,
	enabled bool,
	repository persistence.StepRepository,
	bus eventbus.EventBus,
	logger *slog.Logger,
) (*gateway.Gateway, error) {
	if !enabled {
		logger.InfoContext(ctx, "Gateway disabled; steps are saved elsewhere")

		return nil, nil
	}

	gw := gateway.NewGateway(repository, logger.With("module", "gateway"), gateway.WithPublisher(bus))

	if err := gw.Register(bus); err != nil {
		return nil, fmt.Errorf("failed to register gateway: %w", err)
	}

	if err := bus.Subscribe(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	return gw, nil
}
