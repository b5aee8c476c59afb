package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusAwaitingHuman indicates the task is waiting for a human answer.
	TaskStatusAwaitingHuman TaskStatus = "awaiting_human_response"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusAwaitingHuman:
		return true
	default:
		return false
	}
}

// TaskType identifies the kind of work a task represents.
type TaskType string

const (
	// TaskTypeSearch is an information-gathering task.
	TaskTypeSearch TaskType = "search"
	// TaskTypeAnalysis is an analysis or evaluation task.
	TaskTypeAnalysis TaskType = "analysis"
	// TaskTypeGeneration is a content or code generation task.
	TaskTypeGeneration TaskType = "generation"
	// TaskTypeExecution is an action-performing task.
	TaskTypeExecution TaskType = "execution"
	// TaskTypeCustom is a task with no specialized handling.
	TaskTypeCustom TaskType = "custom"
	// TaskTypePlanAnalysis is a lead-agent task that produces a mission plan.
	TaskTypePlanAnalysis TaskType = "plan_analysis"
	// TaskTypeAgentCreation is a task that provisions new agents.
	TaskTypeAgentCreation TaskType = "agent_creation"
	// TaskTypeCoordination is a task coordinating other tasks.
	TaskTypeCoordination TaskType = "coordination"
	// TaskTypeHumanInput is a task answered by a human operator.
	TaskTypeHumanInput TaskType = "human_input"
	// TaskTypeAuditReview is a task asking an auditor to rule on a failed task.
	TaskTypeAuditReview TaskType = "audit_review"
)

// Valid returns true if the type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeSearch, TaskTypeAnalysis, TaskTypeGeneration, TaskTypeExecution,
		TaskTypeCustom, TaskTypePlanAnalysis, TaskTypeAgentCreation,
		TaskTypeCoordination, TaskTypeHumanInput, TaskTypeAuditReview:
		return true
	default:
		return false
	}
}

// DefaultMaxRetries is the number of automatic retries granted to a task
// unless the plan or creator specifies otherwise.
const DefaultMaxRetries = 3

// RetryAttempt records a single failed execution attempt.
type RetryAttempt struct {
	// Attempt is the 1-indexed attempt number.
	Attempt int `json:"attempt"`
	// Error is the failure message reported by the executing agent.
	Error string `json:"error"`
	// Timestamp is when the failure was recorded.
	Timestamp time.Time `json:"timestamp"`
	// AgentID is the agent that was executing the task, if known.
	AgentID string `json:"agent_id,omitempty"`
}

// Task represents a unit of work inside a mission.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// MissionID is the mission this task belongs to.
	MissionID string `json:"mission_id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed instructions for the task.
	Description string `json:"description,omitempty"`
	// Type classifies the task for handler dispatch.
	Type TaskType `json:"type"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// AssignedTo is the ID of the agent working on this task, if any.
	AssignedTo string `json:"assigned_to,omitempty"`
	// Dependencies lists task IDs that must complete before this task.
	// All referenced tasks must belong to the same mission.
	Dependencies []string `json:"dependencies,omitempty"`
	// RetryCount is the number of failures recorded so far.
	RetryCount int `json:"retry_count"`
	// MaxRetries is the number of automatic retries allowed.
	MaxRetries int `json:"max_retries"`
	// RetryHistory is the ordered record of failed attempts.
	RetryHistory []RetryAttempt `json:"retry_history,omitempty"`
	// AuditorReviewID references the audit_review task ruling on this task.
	// While set, the task must not be dispatched to a normal worker.
	AuditorReviewID string `json:"auditor_review_id,omitempty"`
	// HumanTaskID references the human_input task created when this task
	// was escalated to a human.
	HumanTaskID string `json:"human_task_id,omitempty"`
	// OriginTaskID links audit_review and human_input tasks back to the
	// failed task they were created for.
	OriginTaskID string `json:"origin_task_id,omitempty"`
	// Input is the opaque payload handed to the executing agent.
	Input string `json:"input,omitempty"`
	// Output is the opaque result produced on completion.
	Output string `json:"output,omitempty"`
	// Error is the most recent failure message.
	Error string `json:"error,omitempty"`
	// EstimateMinutes is the expected duration, used as the critical-path
	// weight. Zero means unestimated (weight 1).
	EstimateMinutes float64 `json:"estimate_minutes,omitempty"`
	// Version is the optimistic-concurrency counter for store updates.
	Version int `json:"version"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the task was last claimed, if ever.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// UnderAudit returns true while an auditor decision is outstanding.
func (t *Task) UnderAudit() bool {
	return t.AuditorReviewID != ""
}

// Dispatchable returns true if the task may be handed to a normal worker,
// ignoring dependency state. A pending task under audit is not dispatchable;
// dependency satisfaction is checked by the dependency graph.
func (t *Task) Dispatchable() bool {
	return t.Status == TaskStatusPending && !t.UnderAudit()
}

// Weight returns the critical-path weight for this task.
func (t *Task) Weight() float64 {
	if t.EstimateMinutes > 0 {
		return t.EstimateMinutes
	}
	return 1
}

// DependsOn returns true if depID is in the task's dependency set.
func (t *Task) DependsOn(depID string) bool {
	for _, id := range t.Dependencies {
		if id == depID {
			return true
		}
	}
	return false
}
