package orchestrator

import (
	"fmt"

	"github.com/ShayCichocki/squad/internal/events"
	"github.com/ShayCichocki/squad/internal/graph"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// NextTask hands the polling agent its next unit of work, or nil when
// nothing is dispatchable. The claim is an atomic conditional update in
// the store, so two agents polling concurrently can never receive the
// same task.
func (c *Coordinator) NextTask(agentID string) (*models.Task, error) {
	agent, err := c.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	if agent.CurrentMissionID == "" {
		return nil, nil
	}

	mission, err := c.store.GetMission(agent.CurrentMissionID)
	if err != nil {
		return nil, err
	}
	// A paused mission stops new dispatch; in-flight work is unaffected.
	if mission.Status != models.MissionStatusActive {
		return nil, nil
	}

	tasks, err := c.store.FindTasksByMission(mission.ID, state.TaskFilter{})
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(tasks)
	if err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}

	for _, candidate := range g.Executable() {
		// Tasks pre-assigned to someone else are not offered to this agent.
		if candidate.AssignedTo != "" && candidate.AssignedTo != agentID {
			continue
		}
		claimed, err := c.store.ClaimTask(candidate.ID, agentID, c.now())
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Another agent won the race for this task; try the next one.
			continue
		}

		if agent.Status == models.AgentStatusIdle {
			agent.Status = models.AgentStatusBusy
			if err := c.store.UpdateAgent(agent); err != nil {
				c.logger.Log("warn: mark agent %s busy: %v", agentID, err)
			}
		}

		task, err := c.store.GetTask(candidate.ID)
		if err != nil {
			return nil, err
		}
		c.logger.Log("task %s claimed by agent %s (mission %s)", task.ID, agentID, mission.ID)
		c.publish(events.TopicTask, events.TaskClaimedEvent{
			ID: task.ID, Mission: mission.ID, AgentID: agentID, Timestamp: c.now(),
		})
		return task, nil
	}
	return nil, nil
}
