package events

import (
	"time"

	"github.com/ShayCichocki/squad/pkg/models"
)

// Event is implemented by everything published on the Broker.
type Event interface {
	EventType() string
	MissionID() string
}

// Topic constants
const (
	TopicTask    = "task"
	TopicMission = "mission"
	TopicAgent   = "agent"
)

// Event type constants
const (
	EventTypeTaskClaimed    = "task.claimed"
	EventTypeTaskCompleted  = "task.completed"
	EventTypeTaskFailed     = "task.failed"
	EventTypeTaskRetried    = "task.retried"
	EventTypeTaskAudited    = "task.audit_requested"
	EventTypeTaskEscalated  = "task.escalated"
	EventTypeMissionStarted = "mission.activated"
	EventTypeMissionDone    = "mission.completed"
	EventTypeAgentEnrolled  = "agent.enrolled"
)

// TaskClaimedEvent is published when an agent claims a pending task.
type TaskClaimedEvent struct {
	ID        string
	Mission   string
	AgentID   string
	Timestamp time.Time
}

func (e TaskClaimedEvent) EventType() string { return EventTypeTaskClaimed }
func (e TaskClaimedEvent) MissionID() string { return e.Mission }

// TaskCompletedEvent is published when a task finishes successfully.
type TaskCompletedEvent struct {
	ID        string
	Mission   string
	AgentID   string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) MissionID() string { return e.Mission }

// TaskFailedEvent is published on every recorded failure, whether or not
// the task still has retries left.
type TaskFailedEvent struct {
	ID         string
	Mission    string
	AgentID    string
	Reason     string
	RetryCount int
	Timestamp  time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) MissionID() string { return e.Mission }

// TaskRetriedEvent is published when a failed task is returned to the
// pending pool for another attempt.
type TaskRetriedEvent struct {
	ID        string
	Mission   string
	Attempt   int
	Timestamp time.Time
}

func (e TaskRetriedEvent) EventType() string { return EventTypeTaskRetried }
func (e TaskRetriedEvent) MissionID() string { return e.Mission }

// TaskAuditedEvent is published when a task exhausts its retries and an
// auditor review is opened for it.
type TaskAuditedEvent struct {
	ID          string
	Mission     string
	AuditTaskID string
	Timestamp   time.Time
}

func (e TaskAuditedEvent) EventType() string { return EventTypeTaskAudited }
func (e TaskAuditedEvent) MissionID() string { return e.Mission }

// TaskEscalatedEvent is published when an auditor hands a task to a human.
type TaskEscalatedEvent struct {
	ID          string
	Mission     string
	HumanTaskID string
	Question    string
	Timestamp   time.Time
}

func (e TaskEscalatedEvent) EventType() string { return EventTypeTaskEscalated }
func (e TaskEscalatedEvent) MissionID() string { return e.Mission }

// MissionStartedEvent is published when a mission becomes active.
type MissionStartedEvent struct {
	Mission   string
	TaskCount int
	Timestamp time.Time
}

func (e MissionStartedEvent) EventType() string { return EventTypeMissionStarted }
func (e MissionStartedEvent) MissionID() string { return e.Mission }

// MissionDoneEvent is published when every task in a mission reached a
// terminal state.
type MissionDoneEvent struct {
	Mission   string
	Completed int
	Failed    int
	Timestamp time.Time
}

func (e MissionDoneEvent) EventType() string { return EventTypeMissionDone }
func (e MissionDoneEvent) MissionID() string { return e.Mission }

// AgentEnrolledEvent is published when a new agent joins a mission roster.
type AgentEnrolledEvent struct {
	Mission   string
	AgentID   string
	Role      string
	Status    models.AgentStatus
	Timestamp time.Time
}

func (e AgentEnrolledEvent) EventType() string { return EventTypeAgentEnrolled }
func (e AgentEnrolledEvent) MissionID() string { return e.Mission }
