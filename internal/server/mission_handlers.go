package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// healthCheck handles GET /health
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// readyCheck handles GET /ready
func (s *Server) readyCheck(c *fiber.Ctx) error {
	ready := s.store != nil
	status := "ready"
	if !ready {
		status = "not_ready"
	}

	return c.JSON(ReadyResponse{
		Ready:     ready,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// createMission handles POST /api/v1/missions
func (s *Server) createMission(c *fiber.Ctx) error {
	var req CreateMissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Mission title is required",
		})
	}

	now := time.Now().UTC()
	mission := &models.Mission{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Goal:        req.Goal,
		Status:      models.MissionStatusDraft,
		SquadLeadID: req.SquadLeadID,
		CreatedAt:   now,
	}
	mission.AppendLog(now, "mission_created", "mission created in draft")
	if err := s.store.CreateMission(mission); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(mission)
}

// listMissions handles GET /api/v1/missions
func (s *Server) listMissions(c *fiber.Ctx) error {
	missions, err := s.store.ListMissions()
	if err != nil {
		return err
	}
	if missions == nil {
		missions = []*models.Mission{}
	}
	return c.JSON(missions)
}

// getMission handles GET /api/v1/missions/:id
func (s *Server) getMission(c *fiber.Ctx) error {
	mission, err := s.store.GetMission(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(mission)
}

// activateMission handles POST /api/v1/missions/:id/activate
func (s *Server) activateMission(c *fiber.Ctx) error {
	mission, err := s.coord.ActivateMission(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(mission)
}

// pauseMission handles POST /api/v1/missions/:id/pause
func (s *Server) pauseMission(c *fiber.Ctx) error {
	mission, err := s.coord.PauseMission(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(mission)
}

// resumeMission handles POST /api/v1/missions/:id/resume
func (s *Server) resumeMission(c *fiber.Ctx) error {
	mission, err := s.coord.ResumeMission(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(mission)
}

// submitPlan handles POST /api/v1/missions/:id/plan
func (s *Server) submitPlan(c *fiber.Ctx) error {
	var req SubmitPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}

	result, err := s.coord.ProcessPlan(c.Params("id"), req.LeadTaskID, req.Plan)
	if err != nil {
		return err
	}
	code := fiber.StatusCreated
	if len(result.Errors) > 0 {
		// Partial success: some plan items failed.
		code = fiber.StatusMultiStatus
	}
	return c.Status(code).JSON(result)
}

// getMissionDAG handles GET /api/v1/missions/:id/dag
func (s *Server) getMissionDAG(c *fiber.Ctx) error {
	snap, err := s.coord.MissionDAG(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

// listMissionTasks handles GET /api/v1/missions/:id/tasks
func (s *Server) listMissionTasks(c *fiber.Ctx) error {
	missionID := c.Params("id")
	if _, err := s.store.GetMission(missionID); err != nil {
		return err
	}

	filter := state.TaskFilter{
		Status:     models.TaskStatus(c.Query("status")),
		Type:       models.TaskType(c.Query("type")),
		AssignedTo: c.Query("assigned_to"),
	}
	tasks, err := s.store.FindTasksByMission(missionID, filter)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	return c.JSON(tasks)
}

// checkCompletion handles POST /api/v1/missions/:id/check-completion
func (s *Server) checkCompletion(c *fiber.Ctx) error {
	report, err := s.coord.CheckCompletion(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(report)
}
