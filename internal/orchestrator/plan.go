package orchestrator

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/squad/internal/events"
	"github.com/ShayCichocki/squad/internal/graph"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// InvalidPlanError reports a plan document that fails structural
// validation before any entity is created.
type InvalidPlanError struct {
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s", e.Reason)
}

// PlanResult summarizes a ProcessPlan run. A plan that passes structural
// validation is processed item by item; per-item failures land in Errors
// instead of aborting the batch.
type PlanResult struct {
	MissionID     string   `json:"mission_id"`
	TasksCreated  []string `json:"tasks_created"`
	AgentsCreated []string `json:"agents_created"`
	AgentsReused  []string `json:"agents_reused"`
	Errors        []string `json:"errors,omitempty"`
}

// ProcessPlan materializes the agents and tasks described by a plan
// document into the given mission. The plan's local task ids are
// resolved to persisted ids when populating dependencies. leadTaskID
// identifies the analysis task that produced the plan; it is recorded
// in the mission log but not modified here.
func (c *Coordinator) ProcessPlan(missionID, leadTaskID string, plan *models.Plan) (*PlanResult, error) {
	if plan == nil || len(plan.Tasks) == 0 {
		return nil, &InvalidPlanError{Reason: "plan has no tasks"}
	}
	if len(plan.Agents) == 0 {
		return nil, &InvalidPlanError{Reason: "plan has no agents"}
	}

	mission, err := c.store.GetMission(missionID)
	if err != nil {
		return nil, err
	}

	depsByLocal := planDependencies(plan)
	if err := validatePlanStructure(plan, depsByLocal); err != nil {
		return nil, err
	}

	c.logger.Log("processing plan for mission %s: %d tasks, %d agents (lead task %s)",
		missionID, len(plan.Tasks), len(plan.Agents), leadTaskID)

	result := &PlanResult{MissionID: missionID}
	now := c.now()

	// Agents first so tasks can be assigned by name.
	agentIDsByName := make(map[string]string, len(plan.Agents))
	for _, spec := range plan.Agents {
		agent, created, err := c.enrollAgent(missionID, spec)
		if err != nil {
			msg := fmt.Sprintf("agent %q: %v", spec.Name, err)
			result.Errors = append(result.Errors, msg)
			mission.AppendLog(now, "plan_agent_failed", msg)
			continue
		}
		agentIDsByName[agent.Name] = agent.ID
		if created {
			result.AgentsCreated = append(result.AgentsCreated, agent.ID)
			mission.AppendLog(now, "agent_created", fmt.Sprintf("agent %s (%s) enrolled as %s", agent.Name, agent.ID, agent.Role))
		} else {
			result.AgentsReused = append(result.AgentsReused, agent.ID)
			mission.AppendLog(now, "agent_reused", fmt.Sprintf("agent %s (%s) reused as %s", agent.Name, agent.ID, agent.Role))
		}
		c.publish(events.TopicAgent, events.AgentEnrolledEvent{
			Mission: missionID, AgentID: agent.ID, Role: agent.Role,
			Status: agent.Status, Timestamp: now,
		})
	}

	// Pre-assign persisted ids so dependencies between plan tasks can be
	// resolved regardless of declaration order.
	taskIDsByLocal := make(map[string]string, len(plan.Tasks))
	for _, spec := range plan.Tasks {
		taskIDsByLocal[spec.LocalID] = c.newID()
	}

	for _, spec := range plan.Tasks {
		task := c.taskFromSpec(missionID, spec, depsByLocal[spec.LocalID], taskIDsByLocal, agentIDsByName, now)
		if err := c.store.CreateTask(task); err != nil {
			msg := fmt.Sprintf("task %q: %v", spec.LocalID, err)
			result.Errors = append(result.Errors, msg)
			mission.AppendLog(now, "plan_task_failed", msg)
			continue
		}
		result.TasksCreated = append(result.TasksCreated, task.ID)
		mission.AppendLog(now, "task_created", fmt.Sprintf("task %s (%s) created from plan item %q", task.Title, task.ID, spec.LocalID))
	}

	mission.AppendLog(now, "plan_processed", fmt.Sprintf(
		"plan from task %s: %d tasks created, %d agents created, %d reused, %d errors",
		leadTaskID, len(result.TasksCreated), len(result.AgentsCreated), len(result.AgentsReused), len(result.Errors)))

	if err := c.store.UpdateMission(mission); err != nil {
		return result, fmt.Errorf("persist mission log: %w", err)
	}
	return result, nil
}

// planDependencies merges each task's dependency list with the plan's
// top-level dependency edges, deduplicated, keyed by local id.
func planDependencies(plan *models.Plan) map[string][]string {
	deps := make(map[string][]string, len(plan.Tasks))
	seen := make(map[string]map[string]bool)
	add := func(local, dep string) {
		if seen[local] == nil {
			seen[local] = make(map[string]bool)
		}
		if seen[local][dep] {
			return
		}
		seen[local][dep] = true
		deps[local] = append(deps[local], dep)
	}
	for _, t := range plan.Tasks {
		for _, d := range t.Dependencies {
			add(t.LocalID, d)
		}
	}
	for _, e := range plan.Dependencies {
		add(e.TaskID, e.DependsOn)
	}
	return deps
}

// validatePlanStructure rejects the plan before any entity is persisted:
// duplicate or empty local ids, dangling dependency references, unknown
// task types, unknown assignees, and dependency cycles. depsByLocal is
// the merged dependency map from planDependencies.
func validatePlanStructure(plan *models.Plan, depsByLocal map[string][]string) error {
	agentNames := make(map[string]bool, len(plan.Agents))
	for _, a := range plan.Agents {
		if a.Name == "" {
			return &InvalidPlanError{Reason: "agent with empty name"}
		}
		if a.Role == "" {
			return &InvalidPlanError{Reason: fmt.Sprintf("agent %q has no role", a.Name)}
		}
		if agentNames[a.Name] {
			return &InvalidPlanError{Reason: fmt.Sprintf("duplicate agent name %q", a.Name)}
		}
		agentNames[a.Name] = true
	}

	locals := make(map[string]bool, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if t.LocalID == "" {
			return &InvalidPlanError{Reason: "task with empty id"}
		}
		if locals[t.LocalID] {
			return &InvalidPlanError{Reason: fmt.Sprintf("duplicate task id %q", t.LocalID)}
		}
		locals[t.LocalID] = true
	}

	for _, e := range plan.Dependencies {
		if !locals[e.TaskID] {
			return &InvalidPlanError{Reason: fmt.Sprintf("dependency edge names unknown task %q", e.TaskID)}
		}
		if !locals[e.DependsOn] {
			return &InvalidPlanError{Reason: fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.DependsOn)}
		}
	}

	// Prospective tasks keyed by local id; cycle and dangling-reference
	// checks run on these before anything exists in the store.
	prospective := make([]*models.Task, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if t.Type != "" && !t.Type.Valid() {
			return &InvalidPlanError{Reason: fmt.Sprintf("task %q has unknown type %q", t.LocalID, t.Type)}
		}
		if t.AssignTo != "" && !agentNames[t.AssignTo] {
			return &InvalidPlanError{Reason: fmt.Sprintf("task %q assigned to unknown agent %q", t.LocalID, t.AssignTo)}
		}
		for _, dep := range depsByLocal[t.LocalID] {
			if !locals[dep] {
				return &InvalidPlanError{Reason: fmt.Sprintf("task %q depends on unknown task %q", t.LocalID, dep)}
			}
		}
		prospective = append(prospective, &models.Task{
			ID:           t.LocalID,
			Dependencies: depsByLocal[t.LocalID],
		})
	}

	g, err := graph.Build(prospective)
	if err != nil {
		return &InvalidPlanError{Reason: err.Error()}
	}
	if ce := g.DetectCycle(); ce != nil {
		return &InvalidPlanError{Reason: fmt.Sprintf("dependency cycle: %v", ce.Cycle)}
	}
	return nil
}

// enrollAgent reuses an existing agent by name or creates one. A reused
// agent keeps its metrics and gains this mission as its current one.
func (c *Coordinator) enrollAgent(missionID string, spec models.PlanAgent) (*models.Agent, bool, error) {
	existing, err := c.store.GetAgentByName(spec.Name)
	switch {
	case err == nil:
		existing.CurrentMissionID = missionID
		if existing.Status == models.AgentStatusOffline || existing.Status == models.AgentStatusInactive {
			existing.Status = models.AgentStatusIdle
		}
		if err := c.store.UpdateAgent(existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case state.IsNotFound(err):
		agent := &models.Agent{
			ID:               c.newID(),
			Name:             spec.Name,
			Role:             spec.Role,
			Status:           models.AgentStatusIdle,
			CurrentMissionID: missionID,
			CreatedAt:        c.now(),
		}
		if err := c.store.CreateAgent(agent); err != nil {
			return nil, false, err
		}
		return agent, true, nil
	default:
		return nil, false, err
	}
}

// taskFromSpec builds a persisted Task from a plan item with local ids
// resolved. localDeps is the task's merged dependency list; the plan's
// type defaults to custom and its retry budget to the standard one.
func (c *Coordinator) taskFromSpec(missionID string, spec models.PlanTask, localDeps []string, taskIDs, agentIDs map[string]string, now time.Time) *models.Task {
	taskType := models.TaskTypeCustom
	if spec.Type != "" {
		taskType = spec.Type
	}
	maxRetries := models.DefaultMaxRetries
	if spec.MaxRetries > 0 {
		maxRetries = spec.MaxRetries
	}

	deps := make([]string, 0, len(localDeps))
	for _, dep := range localDeps {
		deps = append(deps, taskIDs[dep])
	}

	return &models.Task{
		ID:              taskIDs[spec.LocalID],
		MissionID:       missionID,
		Title:           spec.Title,
		Description:     spec.Description,
		Type:            taskType,
		Status:          models.TaskStatusPending,
		AssignedTo:      agentIDs[spec.AssignTo],
		Dependencies:    deps,
		MaxRetries:      maxRetries,
		Input:           spec.Input,
		EstimateMinutes: spec.EstimateMinutes,
		CreatedAt:       now,
	}
}
