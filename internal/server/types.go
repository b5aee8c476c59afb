// Package server provides the REST API for the orchestration core.
package server

import (
	"github.com/ShayCichocki/squad/pkg/models"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// NeedsAudit is set when a retry was rejected because the task must
	// go through the audit protocol.
	NeedsAudit bool `json:"needs_audit,omitempty"`
	// Cycle carries the offending dependency cycle for 409 responses.
	Cycle []string `json:"cycle,omitempty"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents a readiness check response.
type ReadyResponse struct {
	Ready     bool   `json:"ready"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// CreateMissionRequest creates a new draft mission.
type CreateMissionRequest struct {
	Title       string `json:"title"`
	Goal        string `json:"goal,omitempty"`
	SquadLeadID string `json:"squad_lead_id,omitempty"`
}

// SubmitPlanRequest materializes a plan document into a mission.
type SubmitPlanRequest struct {
	// LeadTaskID is the analysis task that produced the plan.
	LeadTaskID string       `json:"lead_task_id,omitempty"`
	Plan       *models.Plan `json:"plan"`
}

// CreateAgentRequest registers a new agent.
type CreateAgentRequest struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	MissionID string `json:"mission_id,omitempty"`
}

// CreateTaskRequest creates a single task directly.
type CreateTaskRequest struct {
	MissionID       string          `json:"mission_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Type            models.TaskType `json:"type,omitempty"`
	AssignedTo      string          `json:"assigned_to,omitempty"`
	Dependencies    []string        `json:"dependencies,omitempty"`
	Input           string          `json:"input,omitempty"`
	EstimateMinutes float64         `json:"estimate_minutes,omitempty"`
	MaxRetries      int             `json:"max_retries,omitempty"`
}

// CompleteTaskRequest reports a successful task execution.
type CompleteTaskRequest struct {
	Output string `json:"output"`
}

// FailTaskRequest reports a failed task execution.
type FailTaskRequest struct {
	Error string `json:"error"`
}

// AuditorDecisionRequest carries an auditor's ruling for a task under
// review.
type AuditorDecisionRequest struct {
	Decision           models.AuditDecision `json:"decision"`
	Reason             string               `json:"reason,omitempty"`
	SuggestedAgentRole string               `json:"suggested_agent_role,omitempty"`
	RefinedDescription string               `json:"refined_description,omitempty"`
	QuestionForHuman   string               `json:"question_for_human,omitempty"`
}

// AuditorDecisionResponse reports the applied ruling.
type AuditorDecisionResponse struct {
	Decision    models.AuditDecision `json:"decision"`
	Message     string               `json:"message"`
	HumanTaskID string               `json:"human_task_id,omitempty"`
}

// HumanResponseRequest answers a human_input task.
type HumanResponseRequest struct {
	Response string `json:"response"`
}

// AddDependencyRequest adds one dependency edge to a task.
type AddDependencyRequest struct {
	DependsOnTaskID string `json:"depends_on_task_id"`
}

// NextTaskResponse wraps the dispatch result for a polling agent. Task
// is null when nothing is dispatchable.
type NextTaskResponse struct {
	Task *models.Task `json:"task"`
}
