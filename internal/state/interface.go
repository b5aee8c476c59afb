// Package state provides SQLite-based persistence for missions, tasks,
// and agents. Documents update through single-row compare-and-update
// guarded by a version counter; claiming a task is a single conditional
// UPDATE so two workers can never hold the same task.
package state

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ShayCichocki/squad/pkg/models"
)

// ErrVersionConflict rejects an update whose document version is stale.
var ErrVersionConflict = errors.New("document version conflict")

// NotFoundError reports a missing document.
type NotFoundError struct {
	// Kind is the document kind ("task", "mission", "agent").
	Kind string
	// ID is the requested document ID.
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound returns true if err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// TaskFilter narrows FindTasksByMission results. Zero values match all.
type TaskFilter struct {
	// Status matches tasks with this status.
	Status models.TaskStatus
	// Type matches tasks of this type.
	Type models.TaskType
	// AssignedTo matches tasks assigned to this agent.
	AssignedTo string
}

// TaskStore handles task persistence.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	// UpdateTask performs a compare-and-update keyed on t.Version and
	// increments it on success. Returns ErrVersionConflict when stale.
	UpdateTask(t *models.Task) error
	DeleteTask(id string) error
	FindTasksByMission(missionID string, filter TaskFilter) ([]*models.Task, error)
	// ClaimTask atomically moves a pending, unaudited task to in_progress
	// for agentID. The claim succeeds only if the task is unassigned or
	// already assigned to the same agent. Returns false when the guard
	// does not hold.
	ClaimTask(taskID, agentID string, now time.Time) (bool, error)
}

// MissionStore handles mission persistence.
type MissionStore interface {
	CreateMission(m *models.Mission) error
	GetMission(id string) (*models.Mission, error)
	UpdateMission(m *models.Mission) error
	ListMissions() ([]*models.Mission, error)
}

// AgentStore handles agent persistence.
type AgentStore interface {
	CreateAgent(a *models.Agent) error
	GetAgent(id string) (*models.Agent, error)
	GetAgentByName(name string) (*models.Agent, error)
	UpdateAgent(a *models.Agent) error
	FindAgentsByRole(role string) ([]*models.Agent, error)
	ListAgents() ([]*models.Agent, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is the full persistence contract the orchestration core depends
// on, composed from focused sub-interfaces so collaborators can narrow
// their dependencies.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	MissionStore
	AgentStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ TaskStore    = (*DB)(nil)
	_ MissionStore = (*DB)(nil)
	_ AgentStore   = (*DB)(nil)
)
