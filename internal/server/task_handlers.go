package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// createTask handles POST /api/v1/tasks
func (s *Server) createTask(c *fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.MissionID == "" || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Task mission_id and title are required",
		})
	}

	taskType := models.TaskTypeCustom
	if req.Type != "" {
		if !req.Type.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_request",
				Message: "Unknown task type: " + string(req.Type),
			})
		}
		taskType = req.Type
	}
	maxRetries := models.DefaultMaxRetries
	if req.MaxRetries > 0 {
		maxRetries = req.MaxRetries
	}

	if _, err := s.store.GetMission(req.MissionID); err != nil {
		return err
	}

	// Dependency edges are validated against the mission's existing tasks
	// before anything is persisted.
	if len(req.Dependencies) > 0 {
		existing, err := s.store.FindTasksByMission(req.MissionID, state.TaskFilter{})
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(existing))
		for _, t := range existing {
			known[t.ID] = true
		}
		for _, dep := range req.Dependencies {
			if !known[dep] {
				return &state.NotFoundError{Kind: "task", ID: dep}
			}
		}
	}

	task := &models.Task{
		ID:              uuid.NewString(),
		MissionID:       req.MissionID,
		Title:           req.Title,
		Description:     req.Description,
		Type:            taskType,
		Status:          models.TaskStatusPending,
		AssignedTo:      req.AssignedTo,
		Dependencies:    req.Dependencies,
		Input:           req.Input,
		EstimateMinutes: req.EstimateMinutes,
		MaxRetries:      maxRetries,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateTask(task); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// getTask handles GET /api/v1/tasks/:id
func (s *Server) getTask(c *fiber.Ctx) error {
	task, err := s.store.GetTask(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// deleteTask handles DELETE /api/v1/tasks/:id
func (s *Server) deleteTask(c *fiber.Ctx) error {
	if err := s.store.DeleteTask(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// completeTask handles POST /api/v1/tasks/:id/complete
func (s *Server) completeTask(c *fiber.Ctx) error {
	var req CompleteTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}

	task, err := s.coord.CompleteTask(c.Params("id"), req.Output)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// failTask handles POST /api/v1/tasks/:id/fail
func (s *Server) failTask(c *fiber.Ctx) error {
	var req FailTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.Error == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "A failure reason is required",
		})
	}

	result, err := s.coord.FailTask(c.Params("id"), req.Error)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// retryTask handles POST /api/v1/tasks/:id/retry
func (s *Server) retryTask(c *fiber.Ctx) error {
	task, err := s.coord.RetryTask(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// auditorDecision handles POST /api/v1/tasks/:id/auditor-decision
func (s *Server) auditorDecision(c *fiber.Ctx) error {
	var req AuditorDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}

	result, err := s.coord.AuditorDecision(c.Params("id"), models.AuditRuling{
		Decision:           req.Decision,
		Reason:             req.Reason,
		SuggestedAgentRole: req.SuggestedAgentRole,
		RefinedDescription: req.RefinedDescription,
		QuestionForHuman:   req.QuestionForHuman,
	})
	if err != nil {
		return err
	}
	return c.JSON(AuditorDecisionResponse{
		Decision:    result.Decision,
		Message:     result.Message,
		HumanTaskID: result.HumanTaskID,
	})
}

// humanResponse handles POST /api/v1/tasks/:id/human-response
func (s *Server) humanResponse(c *fiber.Ctx) error {
	var req HumanResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.Response == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "A response is required",
		})
	}

	origin, err := s.coord.HumanResponse(c.Params("id"), req.Response)
	if err != nil {
		return err
	}
	return c.JSON(origin)
}

// addDependency handles POST /api/v1/tasks/:id/dependencies
func (s *Server) addDependency(c *fiber.Ctx) error {
	var req AddDependencyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.DependsOnTaskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "depends_on_task_id is required",
		})
	}

	task, err := s.coord.AddDependency(c.Params("id"), req.DependsOnTaskID)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// removeDependency handles DELETE /api/v1/tasks/:id/dependencies/:depId
func (s *Server) removeDependency(c *fiber.Ctx) error {
	task, err := s.coord.RemoveDependency(c.Params("id"), c.Params("depId"))
	if err != nil {
		return err
	}
	return c.JSON(task)
}
