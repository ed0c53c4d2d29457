// Package web provides HTTP handlers and REST API endpoints for the step editor.
package web

import (
	"math"
	"net/http"
	"time"

	"github.com/dukex/stepflow/pkg/editor"
	"github.com/dukex/stepflow/pkg/gateway"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// appendAtEnd is past any real index; the store clamps it to an append.
const appendAtEnd = math.MaxInt

type APIHandlers struct {
	editorService   *services.Editor
	scenarioService *services.Scenarios
	healthService   *services.Health
	gateway         *gateway.Gateway
	validator       *validator.Validate
	registry        *registry.Registry
}

// NewAPIHandlers wires the handlers. gw may be nil when saving runs in
// another process; save status is then unavailable.
func NewAPIHandlers(
	editorService *services.Editor,
	scenarioService *services.Scenarios,
	healthService *services.Health,
	gw *gateway.Gateway,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		editorService:   editorService,
		scenarioService: scenarioService,
		healthService:   healthService,
		gateway:         gw,
		validator:       validator,
		registry:        registry,
	}
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"actions": h.registry.Definitions(),
	})
}

func (h *APIHandlers) GetScenarios(c fiber.Ctx) error {
	scenarios, err := h.scenarioService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(scenarios)
}

func (h *APIHandlers) SaveScenario(c fiber.Ctx) error {
	var req SaveScenarioRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	scenario := models.ScenarioOption{ID: req.ID, Name: req.Name}

	if err := h.scenarioService.Save(c.Context(), scenario); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(scenario)
}

func (h *APIHandlers) OpenSession(c fiber.Ctx) error {
	snapshot, err := h.editorService.Open(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) CloseSession(c fiber.Ctx) error {
	if err := h.editorService.Close(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetSteps(c fiber.Ctx) error {
	snapshot, err := h.editorService.Snapshot(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	var req AddStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	insertAfter := appendAtEnd
	if req.InsertAfter != nil {
		insertAfter = *req.InsertAfter
	}

	step, snapshot, err := h.editorService.AddStep(c.Context(), c.Params("id"), models.ActionType(req.ActionType), insertAfter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StepResponse{Step: &step, Changed: true, Snapshot: snapshot})
}

func (h *APIHandlers) ReplaceSteps(c fiber.Ctx) error {
	var req ReplaceStepsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	_, snapshot, err := h.editorService.Dispatch(c.Context(), c.Params("id"), editor.ReplaceSteps{Steps: req.Steps})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StepResponse{Changed: true, Snapshot: snapshot})
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	var req UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	actionType := models.ActionType(req.ActionType)
	if !actionType.Valid() {
		return badRequest(c, "unknown action type: "+req.ActionType)
	}

	step := models.Step{
		ClientID:   c.Params("clientId"),
		ActionType: actionType,
		CustomName: req.CustomName,
	}

	if len(req.Config) > 0 && string(req.Config) != "null" {
		if err := h.registry.ValidatePayload(actionType, req.Config); err != nil {
			return badRequest(c, err.Error())
		}

		config, err := models.DecodeConfig(actionType, req.Config)
		if err != nil {
			return badRequest(c, err.Error())
		}

		step.Config = config
	}

	updated, snapshot, err := h.editorService.UpdateStep(c.Context(), c.Params("id"), step)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StepResponse{Step: &updated, Changed: true, Snapshot: snapshot})
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	snapshot, err := h.editorService.DeleteStep(c.Context(), c.Params("id"), c.Params("clientId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StepResponse{Changed: true, Snapshot: snapshot})
}

func (h *APIHandlers) MoveStep(c fiber.Ctx) error {
	var req MoveStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	changed, snapshot, err := h.editorService.MoveStep(c.Context(), c.Params("id"), c.Params("clientId"), editor.Direction(req.Direction))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StepResponse{Changed: changed, Snapshot: snapshot})
}

func (h *APIHandlers) GetGraph(c fiber.Ctx) error {
	compiled, err := h.editorService.Graph(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(compiled)
}

func (h *APIHandlers) GetAnalysis(c fiber.Ctx) error {
	analysis, err := h.editorService.Analyze(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(analysis)
}

func (h *APIHandlers) GetSaveStatus(c fiber.Ctx) error {
	if h.gateway == nil {
		return serviceUnavailable(c, "save status is not tracked by this instance")
	}

	return c.JSON(h.gateway.Status(c.Params("id")))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checks, healthy := h.healthService.Check(c.Context())

	status := "unhealthy"
	message := "Stepflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if healthy {
		status = "healthy"
		message = "Stepflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"checkers":  checks,
		"timestamp": time.Now().UTC(),
	})
}
