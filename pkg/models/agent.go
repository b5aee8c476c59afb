package models

import "time"

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent is available for work.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusBusy indicates the agent is executing a task.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusActive indicates the agent is attached to a mission
	// but not currently executing a task.
	AgentStatusActive AgentStatus = "active"
	// AgentStatusInactive indicates the agent has been deactivated.
	AgentStatusInactive AgentStatus = "inactive"
	// AgentStatusOffline indicates the agent process is unreachable.
	AgentStatusOffline AgentStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusBusy, AgentStatusActive,
		AgentStatusInactive, AgentStatusOffline:
		return true
	default:
		return false
	}
}

// Available returns true if the agent can accept a new assignment.
func (s AgentStatus) Available() bool {
	return s == AgentStatusIdle || s == AgentStatusActive
}

// Agent is a worker identity that claims and executes tasks.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the human-readable agent name, unique per deployment.
	Name string `json:"name"`
	// Role describes the kind of work the agent specializes in
	// (e.g. "researcher", "coder", "auditor", "squad_lead").
	Role string `json:"role"`
	// Status is the current state of the agent.
	Status AgentStatus `json:"status"`
	// CurrentMissionID is the mission the agent is attached to, if any.
	CurrentMissionID string `json:"current_mission_id,omitempty"`
	// MissionHistory lists missions the agent has been released from.
	MissionHistory []string `json:"mission_history,omitempty"`
	// TasksCompleted is the cumulative count of successful tasks.
	TasksCompleted int `json:"tasks_completed"`
	// TasksFailed is the cumulative count of failed attempts.
	TasksFailed int `json:"tasks_failed"`
	// SuccessRate is TasksCompleted / (TasksCompleted + TasksFailed),
	// or zero when the agent has no history.
	SuccessRate float64 `json:"success_rate"`
	// AverageDuration is the mean task duration in seconds.
	AverageDuration float64 `json:"average_duration"`
	// Version is the optimistic-concurrency counter for store updates.
	Version int `json:"version"`
	// CreatedAt is when the agent was registered.
	CreatedAt time.Time `json:"created_at"`
}

// RecordCompletion updates cumulative metrics after a successful task.
// durationSeconds is the wall-clock execution time of the completed task.
func (a *Agent) RecordCompletion(durationSeconds float64) {
	total := a.TasksCompleted + a.TasksFailed
	if durationSeconds > 0 {
		// Running mean over completed tasks only.
		a.AverageDuration = (a.AverageDuration*float64(a.TasksCompleted) + durationSeconds) / float64(a.TasksCompleted+1)
	}
	a.TasksCompleted++
	a.SuccessRate = float64(a.TasksCompleted) / float64(total+1)
}

// RecordFailure updates cumulative metrics after a failed attempt.
func (a *Agent) RecordFailure() {
	a.TasksFailed++
	total := a.TasksCompleted + a.TasksFailed
	a.SuccessRate = float64(a.TasksCompleted) / float64(total)
}
