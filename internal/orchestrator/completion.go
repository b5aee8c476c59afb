package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/squad/internal/audit"
	"github.com/ShayCichocki/squad/internal/events"
	"github.com/ShayCichocki/squad/internal/lifecycle"
	"github.com/ShayCichocki/squad/internal/retry"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// FailResult is the structured outcome of recording a task failure.
// NeedsAudit tells the caller the automatic retry budget is spent and an
// auditor review has been opened.
type FailResult struct {
	Status      models.TaskStatus `json:"status"`
	RetryCount  int               `json:"retry_count"`
	NeedsAudit  bool              `json:"needs_audit"`
	AuditTaskID string            `json:"audit_task_id,omitempty"`
}

// CompleteTask marks a task successful, stores its output, and updates
// the executing agent's metrics.
func (c *Coordinator) CompleteTask(taskID, output string) (*models.Task, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if err := lifecycle.Complete(task, output, now); err != nil {
		return nil, err
	}
	if err := c.store.UpdateTask(task); err != nil {
		return nil, err
	}

	var duration time.Duration
	if task.StartedAt != nil && task.CompletedAt != nil {
		duration = task.CompletedAt.Sub(*task.StartedAt)
	}
	if task.AssignedTo != "" {
		c.creditAgent(task.AssignedTo, duration.Seconds())
	}

	c.logger.Log("task %s completed by agent %s", task.ID, task.AssignedTo)
	c.publish(events.TopicTask, events.TaskCompletedEvent{
		ID: task.ID, Mission: task.MissionID, AgentID: task.AssignedTo,
		Duration: duration, Timestamp: now,
	})
	return task, nil
}

// FailTask records a failure attempt and routes the task onward: back to
// pending while automatic retries remain, or into an auditor review once
// the budget is spent.
func (c *Coordinator) FailTask(taskID, reason string) (*FailResult, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	agentID := task.AssignedTo
	if err := c.retries.RecordFailure(task, reason, agentID); err != nil {
		return nil, err
	}
	if err := c.store.UpdateTask(task); err != nil {
		return nil, err
	}
	if agentID != "" {
		c.debitAgent(agentID)
	}

	c.logger.Log("task %s failed (attempt %d/%d): %s", task.ID, task.RetryCount, task.MaxRetries, reason)
	c.publish(events.TopicTask, events.TaskFailedEvent{
		ID: task.ID, Mission: task.MissionID, AgentID: agentID,
		Reason: reason, RetryCount: task.RetryCount, Timestamp: c.now(),
	})

	switch {
	case retry.NeedsRetry(task):
		if err := c.retries.Retry(task); err != nil {
			return nil, err
		}
		if err := c.store.UpdateTask(task); err != nil {
			return nil, err
		}
		c.publish(events.TopicTask, events.TaskRetriedEvent{
			ID: task.ID, Mission: task.MissionID, Attempt: task.RetryCount + 1, Timestamp: c.now(),
		})
		return &FailResult{Status: task.Status, RetryCount: task.RetryCount}, nil

	case retry.NeedsAudit(task):
		auditTaskID, err := c.openAudit(task)
		if err != nil {
			return nil, err
		}
		return &FailResult{
			Status: task.Status, RetryCount: task.RetryCount,
			NeedsAudit: true, AuditTaskID: auditTaskID,
		}, nil

	default:
		return &FailResult{Status: task.Status, RetryCount: task.RetryCount}, nil
	}
}

// RetryTask is the manual retry endpoint. It returns MaxRetriesError
// (with NeedsAudit set) when the automatic budget is spent.
func (c *Coordinator) RetryTask(taskID string) (*models.Task, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if err := c.retries.Retry(task); err != nil {
		return nil, err
	}
	if err := c.store.UpdateTask(task); err != nil {
		return nil, err
	}
	c.publish(events.TopicTask, events.TaskRetriedEvent{
		ID: task.ID, Mission: task.MissionID, Attempt: task.RetryCount + 1, Timestamp: c.now(),
	})
	return task, nil
}

// openAudit creates an audit_review task for the auditor role and moves
// the failed task into the blocked-under-audit state. The review task is
// created first so the reference on the original can never dangle.
func (c *Coordinator) openAudit(task *models.Task) (string, error) {
	history, err := json.Marshal(task.RetryHistory)
	if err != nil {
		return "", fmt.Errorf("marshal retry history: %w", err)
	}

	auditTask := &models.Task{
		ID:           c.newID(),
		MissionID:    task.MissionID,
		Title:        fmt.Sprintf("Audit review: %s", task.Title),
		Description:  fmt.Sprintf("Task %s failed %d times. Last error: %s", task.ID, task.RetryCount, task.Error),
		Type:         models.TaskTypeAuditReview,
		Status:       models.TaskStatusPending,
		OriginTaskID: task.ID,
		Input:        string(history),
		MaxRetries:   models.DefaultMaxRetries,
		CreatedAt:    c.now(),
	}
	if err := c.store.CreateTask(auditTask); err != nil {
		return "", fmt.Errorf("create audit task: %w", err)
	}

	if err := c.retries.RequestAudit(task, auditTask.ID); err != nil {
		return "", err
	}
	if err := c.store.UpdateTask(task); err != nil {
		return "", err
	}

	c.logger.Log("task %s exhausted retries; audit review %s opened", task.ID, auditTask.ID)
	c.publish(events.TopicTask, events.TaskAuditedEvent{
		ID: task.ID, Mission: task.MissionID, AuditTaskID: auditTask.ID, Timestamp: c.now(),
	})
	return auditTask.ID, nil
}

// AuditorDecision applies an auditor's ruling to the task under review,
// closes the audit_review task, and keeps the mission's escalation
// pointer current.
func (c *Coordinator) AuditorDecision(taskID string, ruling models.AuditRuling) (*audit.Result, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	auditTaskID := task.AuditorReviewID

	result, err := c.auditor.Apply(task, ruling)
	if err != nil {
		return nil, err
	}

	if auditTaskID != "" {
		if err := c.closeAuditTask(auditTaskID, string(ruling.Decision), ruling.Reason); err != nil {
			c.logger.Log("warn: close audit task %s: %v", auditTaskID, err)
		}
	}

	if ruling.Decision == models.AuditDecisionEscalateHuman {
		if err := c.markMissionAwaitingHuman(task.MissionID, task.ID, result.HumanTaskID); err != nil {
			return nil, err
		}
		c.publish(events.TopicTask, events.TaskEscalatedEvent{
			ID: task.ID, Mission: task.MissionID, HumanTaskID: result.HumanTaskID,
			Question: ruling.QuestionForHuman, Timestamp: c.now(),
		})
	}

	c.logger.Log("auditor ruled %s on task %s: %s", ruling.Decision, task.ID, ruling.Reason)
	return result, nil
}

// HumanResponse completes a human_input task with the human's answer and
// wakes the originating task back up.
func (c *Coordinator) HumanResponse(humanTaskID, response string) (*models.Task, error) {
	humanTask, err := c.store.GetTask(humanTaskID)
	if err != nil {
		return nil, err
	}
	if humanTask.Type != models.TaskTypeHumanInput {
		return nil, &lifecycle.InvalidTransitionError{
			TaskID: humanTask.ID, From: humanTask.Status, Event: lifecycle.EventHumanAnswer,
			Reason: "task is not a human_input task",
		}
	}

	now := c.now()
	if humanTask.Status == models.TaskStatusPending {
		// Human-input tasks are answered directly; claim bookkeeping does
		// not apply to them.
		humanTask.Status = models.TaskStatusInProgress
		humanTask.StartedAt = &now
	}
	if err := lifecycle.Complete(humanTask, response, now); err != nil {
		return nil, err
	}
	if err := c.store.UpdateTask(humanTask); err != nil {
		return nil, err
	}

	if humanTask.OriginTaskID == "" {
		return humanTask, nil
	}
	origin, err := c.store.GetTask(humanTask.OriginTaskID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.AnswerHuman(origin); err != nil {
		return nil, err
	}
	// The answer becomes part of the task's working input.
	if origin.Input != "" {
		origin.Input += "\n\n"
	}
	origin.Input += "Human guidance: " + response
	if err := c.store.UpdateTask(origin); err != nil {
		return nil, err
	}

	if err := c.clearMissionAwaitingHuman(origin.MissionID, humanTaskID); err != nil {
		return nil, err
	}
	c.logger.Log("human response recorded for task %s; origin %s resumed", humanTaskID, origin.ID)
	return origin, nil
}

// closeAuditTask marks the audit_review task completed with the ruling
// as its output.
func (c *Coordinator) closeAuditTask(auditTaskID, decision, reason string) error {
	auditTask, err := c.store.GetTask(auditTaskID)
	if err != nil {
		return err
	}
	now := c.now()
	if auditTask.Status == models.TaskStatusPending {
		auditTask.Status = models.TaskStatusInProgress
		auditTask.StartedAt = &now
	}
	output := decision
	if reason != "" {
		output = fmt.Sprintf("%s: %s", decision, reason)
	}
	if err := lifecycle.Complete(auditTask, output, now); err != nil {
		return err
	}
	return c.store.UpdateTask(auditTask)
}

func (c *Coordinator) markMissionAwaitingHuman(missionID, taskID, humanTaskID string) error {
	mission, err := c.store.GetMission(missionID)
	if err != nil {
		return err
	}
	mission.AwaitingHumanTaskID = humanTaskID
	mission.AppendLog(c.now(), "human_escalation",
		fmt.Sprintf("task %s escalated to human via task %s", taskID, humanTaskID))
	return c.store.UpdateMission(mission)
}

func (c *Coordinator) clearMissionAwaitingHuman(missionID, humanTaskID string) error {
	mission, err := c.store.GetMission(missionID)
	if err != nil {
		if state.IsNotFound(err) {
			return nil
		}
		return err
	}
	if mission.AwaitingHumanTaskID != humanTaskID {
		return nil
	}
	mission.AwaitingHumanTaskID = ""
	mission.AppendLog(c.now(), "human_response", fmt.Sprintf("human task %s answered", humanTaskID))
	return c.store.UpdateMission(mission)
}

// creditAgent updates an agent's metrics after a success and returns it
// to the idle pool.
func (c *Coordinator) creditAgent(agentID string, durationSeconds float64) {
	agent, err := c.store.GetAgent(agentID)
	if err != nil {
		c.logger.Log("warn: load agent %s for credit: %v", agentID, err)
		return
	}
	agent.RecordCompletion(durationSeconds)
	if agent.Status == models.AgentStatusBusy {
		agent.Status = models.AgentStatusIdle
	}
	if err := c.store.UpdateAgent(agent); err != nil {
		c.logger.Log("warn: persist agent %s metrics: %v", agentID, err)
	}
}

// debitAgent updates an agent's metrics after a failure.
func (c *Coordinator) debitAgent(agentID string) {
	agent, err := c.store.GetAgent(agentID)
	if err != nil {
		c.logger.Log("warn: load agent %s for debit: %v", agentID, err)
		return
	}
	agent.RecordFailure()
	if agent.Status == models.AgentStatusBusy {
		agent.Status = models.AgentStatusIdle
	}
	if err := c.store.UpdateAgent(agent); err != nil {
		c.logger.Log("warn: persist agent %s metrics: %v", agentID, err)
	}
}
