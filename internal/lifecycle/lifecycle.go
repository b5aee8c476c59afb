// Package lifecycle enforces the task state machine. Every status change
// in the system goes through one of these transition functions; anything
// outside the transition table is an InvalidTransitionError.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/squad/pkg/models"
)

// Event names a state machine transition.
type Event string

const (
	// EventClaim moves pending -> in_progress.
	EventClaim Event = "claim"
	// EventSucceed moves in_progress -> completed.
	EventSucceed Event = "succeed"
	// EventFail moves in_progress -> failed.
	EventFail Event = "fail"
	// EventRetry moves failed -> pending when retries remain.
	EventRetry Event = "retry"
	// EventRequestAudit moves failed -> pending while marking the task
	// as awaiting an auditor decision.
	EventRequestAudit Event = "request_audit"
	// EventAuditDecision resolves an auditor review.
	EventAuditDecision Event = "audit_decision"
	// EventHumanAnswer moves awaiting_human_response -> pending.
	EventHumanAnswer Event = "human_answer"
)

// InvalidTransitionError reports a transition attempted outside the
// state machine's table.
type InvalidTransitionError struct {
	// TaskID is the task the transition was attempted on.
	TaskID string
	// From is the task's status at the time of the attempt.
	From models.TaskStatus
	// Event is the attempted transition.
	Event Event
	// Reason explains which guard rejected the transition.
	Reason string
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: task %s cannot %s from %q: %s",
		e.TaskID, e.Event, e.From, e.Reason)
}

// Claim transitions a pending task to in_progress for the given agent.
// depsSatisfied must reflect whether every dependency is completed; the
// caller derives it from the dependency graph. Claiming a task under
// auditor review is always rejected.
func Claim(t *models.Task, agentID string, depsSatisfied bool, now time.Time) error {
	if t.Status != models.TaskStatusPending {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventClaim,
			Reason: "only pending tasks can be claimed"}
	}
	if t.UnderAudit() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventClaim,
			Reason: "task is awaiting an auditor decision"}
	}
	if !depsSatisfied {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventClaim,
			Reason: "not all dependencies are completed"}
	}

	t.Status = models.TaskStatusInProgress
	t.AssignedTo = agentID
	t.StartedAt = &now
	return nil
}

// Complete transitions an in_progress task to completed with its output.
func Complete(t *models.Task, output string, now time.Time) error {
	if t.Status != models.TaskStatusInProgress {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventSucceed,
			Reason: "only in_progress tasks can complete"}
	}

	t.Status = models.TaskStatusCompleted
	t.Output = output
	t.Error = ""
	t.CompletedAt = &now
	return nil
}

// MarkFailed transitions an in_progress task to failed. Retry bookkeeping
// (history, counters) is owned by the retry manager.
func MarkFailed(t *models.Task) error {
	if t.Status != models.TaskStatusInProgress {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventFail,
			Reason: "only in_progress tasks can fail"}
	}

	t.Status = models.TaskStatusFailed
	return nil
}

// Retry returns a failed task to pending for another automatic attempt.
// Rejected once the retry budget is exhausted or while under audit.
func Retry(t *models.Task) error {
	if t.Status != models.TaskStatusFailed {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventRetry,
			Reason: "only failed tasks can be retried"}
	}
	if t.UnderAudit() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventRetry,
			Reason: "task is awaiting an auditor decision"}
	}
	if t.RetryCount >= t.MaxRetries {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventRetry,
			Reason: "retry budget exhausted"}
	}

	t.Status = models.TaskStatusPending
	return nil
}

// RequestAudit marks a failed, retry-exhausted task as awaiting an auditor
// decision. The task returns to pending but is excluded from dispatch
// until the review referenced by auditTaskID is resolved.
func RequestAudit(t *models.Task, auditTaskID string) error {
	if t.Status != models.TaskStatusFailed {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventRequestAudit,
			Reason: "only failed tasks can be sent to audit"}
	}
	if t.UnderAudit() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventRequestAudit,
			Reason: "task is already awaiting an auditor decision"}
	}
	if t.RetryCount < t.MaxRetries {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventRequestAudit,
			Reason: "retry budget not yet exhausted"}
	}
	if auditTaskID == "" {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventRequestAudit,
			Reason: "audit task id is required"}
	}

	t.Status = models.TaskStatusPending
	t.AuditorReviewID = auditTaskID
	return nil
}

// ResolveAudit clears the auditor review and returns the task to pending.
// Used by the reassign, refine, and retry audit decisions.
func ResolveAudit(t *models.Task) error {
	if !t.UnderAudit() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventAuditDecision,
			Reason: "task is not awaiting an auditor decision"}
	}

	t.Status = models.TaskStatusPending
	t.AuditorReviewID = ""
	return nil
}

// EscalateToHuman resolves an auditor review by routing the task to a
// human operator. humanTaskID references the created human_input task.
func EscalateToHuman(t *models.Task, humanTaskID string) error {
	if !t.UnderAudit() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventAuditDecision,
			Reason: "task is not awaiting an auditor decision"}
	}
	if humanTaskID == "" {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventAuditDecision,
			Reason: "human task id is required"}
	}

	t.Status = models.TaskStatusAwaitingHuman
	t.HumanTaskID = humanTaskID
	t.AuditorReviewID = ""
	return nil
}

// AnswerHuman returns an escalated task to pending after the linked
// human_input task is answered.
func AnswerHuman(t *models.Task) error {
	if t.Status != models.TaskStatusAwaitingHuman {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, Event: EventHumanAnswer,
			Reason: "task is not awaiting a human response"}
	}

	t.Status = models.TaskStatusPending
	t.HumanTaskID = ""
	return nil
}
