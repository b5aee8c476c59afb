package models

import "time"

// MissionStatus represents the current state of a mission.
type MissionStatus string

const (
	// MissionStatusDraft indicates the mission has not been activated.
	MissionStatusDraft MissionStatus = "draft"
	// MissionStatusActive indicates the mission is dispatching tasks.
	MissionStatusActive MissionStatus = "active"
	// MissionStatusPaused indicates new dispatch is suspended.
	// In-flight task executions are not interrupted.
	MissionStatusPaused MissionStatus = "paused"
	// MissionStatusCompleted indicates every task reached a terminal state.
	MissionStatusCompleted MissionStatus = "completed"
)

// Valid returns true if the status is a known value.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionStatusDraft, MissionStatusActive, MissionStatusPaused, MissionStatusCompleted:
		return true
	default:
		return false
	}
}

// LogEntry is one append-only orchestration log record.
// Entries are never mutated after being appended.
type LogEntry struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Action names the event (e.g. "task_created", "mission_completed").
	Action string `json:"action"`
	// Details carries a human-readable description of the event.
	Details string `json:"details,omitempty"`
}

// Mission is a goal container holding a set of tasks and a lead agent.
type Mission struct {
	// ID is the unique identifier for this mission.
	ID string `json:"id"`
	// Title is the short name of the mission.
	Title string `json:"title"`
	// Goal describes what the mission is trying to achieve.
	Goal string `json:"goal,omitempty"`
	// Status is the current state of the mission.
	Status MissionStatus `json:"status"`
	// SquadLeadID is the agent that decomposes the mission into a plan.
	SquadLeadID string `json:"squad_lead_id,omitempty"`
	// OrchestrationLog is the append-only event history of the mission.
	OrchestrationLog []LogEntry `json:"orchestration_log,omitempty"`
	// AwaitingHumanTaskID references an open human_input task blocking
	// part of the mission, if any.
	AwaitingHumanTaskID string `json:"awaiting_human_task_id,omitempty"`
	// Version is the optimistic-concurrency counter for store updates.
	Version int `json:"version"`
	// CreatedAt is when the mission was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the mission completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AppendLog appends an orchestration log entry stamped with now.
func (m *Mission) AppendLog(now time.Time, action, details string) {
	m.OrchestrationLog = append(m.OrchestrationLog, LogEntry{
		Timestamp: now,
		Action:    action,
		Details:   details,
	})
}
