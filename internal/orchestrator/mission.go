package orchestrator

import (
	"fmt"

	"github.com/ShayCichocki/squad/internal/events"
	"github.com/ShayCichocki/squad/internal/graph"
	"github.com/ShayCichocki/squad/internal/retry"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// MissionStateError reports a mission operation attempted from the wrong
// status.
type MissionStateError struct {
	MissionID string
	Status    models.MissionStatus
	Op        string
}

func (e *MissionStateError) Error() string {
	return fmt.Sprintf("mission %s: cannot %s while %s", e.MissionID, e.Op, e.Status)
}

// ActivateMission moves a draft mission to active. The mission's task
// set must form a DAG; a cycle rejects activation.
func (c *Coordinator) ActivateMission(missionID string) (*models.Mission, error) {
	mission, err := c.store.GetMission(missionID)
	if err != nil {
		return nil, err
	}
	if mission.Status != models.MissionStatusDraft && mission.Status != models.MissionStatusPaused {
		return nil, &MissionStateError{MissionID: missionID, Status: mission.Status, Op: "activate"}
	}

	tasks, err := c.store.FindTasksByMission(missionID, state.TaskFilter{})
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(tasks)
	if err != nil {
		return nil, err
	}
	if ce := g.DetectCycle(); ce != nil {
		return nil, ce
	}

	now := c.now()
	mission.Status = models.MissionStatusActive
	mission.AppendLog(now, "mission_activated", fmt.Sprintf("mission activated with %d tasks", len(tasks)))
	if err := c.store.UpdateMission(mission); err != nil {
		return nil, err
	}

	c.logger.Log("mission %s activated (%d tasks)", missionID, len(tasks))
	c.publish(events.TopicMission, events.MissionStartedEvent{
		Mission: missionID, TaskCount: len(tasks), Timestamp: now,
	})
	return mission, nil
}

// PauseMission stops new dispatch for the mission. Work already claimed
// runs to completion.
func (c *Coordinator) PauseMission(missionID string) (*models.Mission, error) {
	mission, err := c.store.GetMission(missionID)
	if err != nil {
		return nil, err
	}
	if mission.Status != models.MissionStatusActive {
		return nil, &MissionStateError{MissionID: missionID, Status: mission.Status, Op: "pause"}
	}
	mission.Status = models.MissionStatusPaused
	mission.AppendLog(c.now(), "mission_paused", "dispatch suspended")
	if err := c.store.UpdateMission(mission); err != nil {
		return nil, err
	}
	c.logger.Log("mission %s paused", missionID)
	return mission, nil
}

// ResumeMission returns a paused mission to active.
func (c *Coordinator) ResumeMission(missionID string) (*models.Mission, error) {
	mission, err := c.store.GetMission(missionID)
	if err != nil {
		return nil, err
	}
	if mission.Status != models.MissionStatusPaused {
		return nil, &MissionStateError{MissionID: missionID, Status: mission.Status, Op: "resume"}
	}
	mission.Status = models.MissionStatusActive
	mission.AppendLog(c.now(), "mission_resumed", "dispatch resumed")
	if err := c.store.UpdateMission(mission); err != nil {
		return nil, err
	}
	c.logger.Log("mission %s resumed", missionID)
	return mission, nil
}

// CompletionReport summarizes a CheckCompletion pass.
type CompletionReport struct {
	MissionID string `json:"mission_id"`
	Completed bool   `json:"completed"`
	Total     int    `json:"total"`
	Done      int    `json:"done"`
	Failed    int    `json:"failed"`
	Open      int    `json:"open"`
}

// CheckCompletion marks the mission completed once every task in it is
// terminal: completed, or failed with no retry, audit, or human path
// left open. Calling it on an already-completed mission is a no-op.
func (c *Coordinator) CheckCompletion(missionID string) (*CompletionReport, error) {
	mission, err := c.store.GetMission(missionID)
	if err != nil {
		return nil, err
	}

	tasks, err := c.store.FindTasksByMission(missionID, state.TaskFilter{})
	if err != nil {
		return nil, err
	}

	report := &CompletionReport{MissionID: missionID, Total: len(tasks)}
	for _, t := range tasks {
		switch {
		case t.Status == models.TaskStatusCompleted:
			report.Done++
		case terminalFailure(t):
			report.Failed++
		default:
			report.Open++
		}
	}
	report.Completed = len(tasks) > 0 && report.Open == 0

	if mission.Status == models.MissionStatusCompleted {
		// Idempotent: no duplicate log entries, no double release.
		report.Completed = true
		return report, nil
	}
	if !report.Completed {
		return report, nil
	}

	now := c.now()
	mission.Status = models.MissionStatusCompleted
	mission.CompletedAt = &now
	mission.AppendLog(now, "mission_completed",
		fmt.Sprintf("%d tasks done, %d failed terminally", report.Done, report.Failed))
	if err := c.store.UpdateMission(mission); err != nil {
		return nil, err
	}

	if mission.SquadLeadID != "" {
		c.releaseLead(mission.SquadLeadID, missionID)
	}

	c.logger.Log("mission %s completed: %d done, %d failed", missionID, report.Done, report.Failed)
	c.publish(events.TopicMission, events.MissionDoneEvent{
		Mission: missionID, Completed: report.Done, Failed: report.Failed, Timestamp: now,
	})
	return report, nil
}

// terminalFailure reports whether a failed task has no recovery path
// left: no automatic retries, no open audit, no pending human answer.
func terminalFailure(t *models.Task) bool {
	if t.Status != models.TaskStatusFailed {
		return false
	}
	return !retry.NeedsRetry(t) && !retry.NeedsAudit(t) && !t.UnderAudit()
}

// releaseLead returns the squad lead to the idle pool and records the
// mission in its history.
func (c *Coordinator) releaseLead(leadID, missionID string) {
	lead, err := c.store.GetAgent(leadID)
	if err != nil {
		c.logger.Log("warn: release squad lead %s: %v", leadID, err)
		return
	}
	lead.Status = models.AgentStatusIdle
	lead.CurrentMissionID = ""
	lead.MissionHistory = append(lead.MissionHistory, missionID)
	if err := c.store.UpdateAgent(lead); err != nil {
		c.logger.Log("warn: persist released squad lead %s: %v", leadID, err)
	}
}
