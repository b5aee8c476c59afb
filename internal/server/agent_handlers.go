package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ShayCichocki/squad/pkg/models"
)

// createAgent handles POST /api/v1/agents
func (s *Server) createAgent(c *fiber.Ctx) error {
	var req CreateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.Name == "" || req.Role == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Agent name and role are required",
		})
	}

	agent := &models.Agent{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Role:             req.Role,
		Status:           models.AgentStatusIdle,
		CurrentMissionID: req.MissionID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.CreateAgent(agent); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(agent)
}

// listAgents handles GET /api/v1/agents
func (s *Server) listAgents(c *fiber.Ctx) error {
	if role := c.Query("role"); role != "" {
		agents, err := s.store.FindAgentsByRole(role)
		if err != nil {
			return err
		}
		if agents == nil {
			agents = []*models.Agent{}
		}
		return c.JSON(agents)
	}

	agents, err := s.store.ListAgents()
	if err != nil {
		return err
	}
	if agents == nil {
		agents = []*models.Agent{}
	}
	return c.JSON(agents)
}

// getAgent handles GET /api/v1/agents/:id
func (s *Server) getAgent(c *fiber.Ctx) error {
	agent, err := s.store.GetAgent(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(agent)
}

// nextTask handles GET /api/v1/agents/:id/next-task
func (s *Server) nextTask(c *fiber.Ctx) error {
	task, err := s.coord.NextTask(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(NextTaskResponse{Task: task})
}
