package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ShayCichocki/squad/internal/audit"
	"github.com/ShayCichocki/squad/internal/graph"
	"github.com/ShayCichocki/squad/internal/lifecycle"
	"github.com/ShayCichocki/squad/internal/orchestrator"
	"github.com/ShayCichocki/squad/internal/retry"
	"github.com/ShayCichocki/squad/internal/state"
)

// customErrorHandler maps the core's error taxonomy to structured 4xx
// responses. Handlers return domain errors untouched; this is the only
// place status codes are decided.
func customErrorHandler(c *fiber.Ctx, err error) error {
	var (
		notFound    *state.NotFoundError
		cycle       *graph.CycleError
		maxRetries  *retry.MaxRetriesError
		transition  *lifecycle.InvalidTransitionError
		invalidPlan *orchestrator.InvalidPlanError
		missionOp   *orchestrator.MissionStateError
		noAgent     *audit.NoEligibleAgentError
		unknownDec  *audit.UnknownDecisionError
	)

	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   notFound.Kind + "_not_found",
			Message: notFound.Error(),
		})
	case errors.As(err, &cycle):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "circular_dependency",
			Message: cycle.Error(),
			Cycle:   cycle.Cycle,
		})
	case errors.As(err, &maxRetries):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:      "max_retries_exceeded",
			Message:    maxRetries.Error(),
			NeedsAudit: maxRetries.NeedsAudit,
		})
	case errors.As(err, &transition):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "invalid_state_transition",
			Message: transition.Error(),
		})
	case errors.As(err, &invalidPlan):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_plan",
			Message: invalidPlan.Error(),
		})
	case errors.As(err, &missionOp):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "invalid_mission_state",
			Message: missionOp.Error(),
		})
	case errors.As(err, &noAgent):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "no_eligible_agent",
			Message: noAgent.Error(),
		})
	case errors.As(err, &unknownDec):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "unknown_audit_decision",
			Message: unknownDec.Error(),
		})
	case errors.Is(err, state.ErrVersionConflict):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "version_conflict",
			Message: "document changed concurrently, retry the request",
		})
	}

	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(ErrorResponse{
		Error:   fmt.Sprintf("error_%d", code),
		Message: message,
	})
}
