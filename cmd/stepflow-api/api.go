// Package main provides the Stepflow API server implementation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/gateway"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/dukex/stepflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

// saveDrainTimeout bounds how long shutdown waits for the gateway to store
// the step lists of closed sessions.
const saveDrainTimeout = 45 * time.Second

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	gateway     *gateway.Gateway
	tracer      trace.Tracer
	validate    *validator.Validate

	editor *services.Editor
}

// NewAPI wires the services. gw may be nil when steps are saved by another process.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	gw *gateway.Gateway,
	tracer trace.Tracer,
) *API {
	var opts []services.EditorOption
	if gw != nil {
		opts = append(opts, services.WithSaveTracker(gw))
	}

	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		gateway:     gw,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		editor:      services.NewEditor(registry, persistence, eventBus, tracer, logger, opts...),
	}
}

func (a *API) App() *fiber.App {
	scenarioService := services.NewScenarios(a.persistence, a.logger)
	healthService := services.NewHealth(a.registry, a.persistence)

	handlers := web.NewAPIHandlers(a.editor, scenarioService, healthService, a.gateway, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stepflow API")
	})

	app.Get("/actions", handlers.GetActions)
	app.Get("/scenarios", handlers.GetScenarios)
	app.Post("/scenarios", handlers.SaveScenario)

	w := app.Group("/workflows")
	w.Post("/:id/session", handlers.OpenSession)
	w.Delete("/:id/session", handlers.CloseSession)

	// Step endpoints:
	w.Get("/:id/steps", handlers.GetSteps)
	w.Post("/:id/steps", handlers.AddStep)
	w.Put("/:id/steps", handlers.ReplaceSteps)
	w.Put("/:id/steps/:clientId", handlers.UpdateStep)
	w.Delete("/:id/steps/:clientId", handlers.DeleteStep)
	w.Post("/:id/steps/:clientId/move", handlers.MoveStep)

	w.Get("/:id/graph", handlers.GetGraph)
	w.Get("/:id/analysis", handlers.GetAnalysis)
	w.Get("/:id/save-status", handlers.GetSaveStatus)

	app.Get("/health", handlers.HealthCheck)

	return app
}

// Start serves until ctx is cancelled, then runs Shutdown. The event bus
// subscription must outlive ctx so the gateway still receives what the
// sessions publish while closing.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shut down HTTP server", "error", err)
		}
	}()

	err := app.Listen(":" + strconv.Itoa(port))

	if shutdownErr := a.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
		a.logger.Error("Failed to shut down editor sessions", "error", shutdownErr)
	}

	return err
}

// Shutdown closes every open editor session and waits for the gateway, when
// it runs in this process, to store their last revisions.
func (a *API) Shutdown(ctx context.Context) error {
	if err := a.editor.CloseAll(ctx); err != nil {
		return fmt.Errorf("failed to close editor sessions: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, saveDrainTimeout)
	defer cancel()

	if err := a.editor.WaitForSaves(ctx); err != nil {
		return fmt.Errorf("failed to save closed sessions: %w", err)
	}

	a.logger.InfoContext(ctx, "Editor sessions closed and saved")

	return nil
}
