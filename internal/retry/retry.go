// Package retry tracks failed attempts per task and decides between
// automatic retry and escalation to the audit protocol.
package retry

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/squad/internal/lifecycle"
	"github.com/ShayCichocki/squad/pkg/models"
)

// MaxRetriesError rejects a retry on a task whose budget is exhausted.
// NeedsAudit tells the caller whether the audit protocol is the next step.
type MaxRetriesError struct {
	// TaskID is the task whose retry was rejected.
	TaskID string
	// RetryCount is the number of failures already recorded.
	RetryCount int
	// MaxRetries is the task's retry budget.
	MaxRetries int
	// NeedsAudit indicates the task must acquire an auditor review
	// before it can run again.
	NeedsAudit bool
}

// Error implements the error interface.
func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("task %s exhausted its retry budget (%d/%d)",
		e.TaskID, e.RetryCount, e.MaxRetries)
}

// Manager applies the retry protocol to task documents.
type Manager struct {
	now func() time.Time
}

// NewManager creates a retry manager using the wall clock.
func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// NewManagerWithClock creates a retry manager with an injected clock.
func NewManagerWithClock(now func() time.Time) *Manager {
	return &Manager{now: now}
}

// RecordFailure appends an attempt to the task's retry history, increments
// its retry counter, and moves it to failed with the given error message.
func (m *Manager) RecordFailure(t *models.Task, errorMessage, agentID string) error {
	if err := lifecycle.MarkFailed(t); err != nil {
		return err
	}

	t.RetryCount++
	t.RetryHistory = append(t.RetryHistory, models.RetryAttempt{
		Attempt:   t.RetryCount,
		Error:     errorMessage,
		Timestamp: m.now(),
		AgentID:   agentID,
	})
	t.Error = errorMessage
	return nil
}

// NeedsRetry reports whether the task is eligible for an automatic retry.
func NeedsRetry(t *models.Task) bool {
	return t.Status == models.TaskStatusFailed &&
		t.RetryCount < t.MaxRetries &&
		!t.UnderAudit()
}

// NeedsAudit reports whether the task has exhausted its retries and must
// acquire an auditor review before running again.
func NeedsAudit(t *models.Task) bool {
	return t.Status == models.TaskStatusFailed &&
		t.RetryCount >= t.MaxRetries &&
		!t.UnderAudit()
}

// Retry returns a failed task to pending for another attempt. When the
// retry budget is exhausted, or an auditor review is already open, the
// call fails with a MaxRetriesError whose NeedsAudit field routes the
// caller to the audit protocol.
func (m *Manager) Retry(t *models.Task) error {
	exhausted := t.Status == models.TaskStatusFailed && t.RetryCount >= t.MaxRetries
	if exhausted || t.UnderAudit() {
		return &MaxRetriesError{
			TaskID:     t.ID,
			RetryCount: t.RetryCount,
			MaxRetries: t.MaxRetries,
			NeedsAudit: true,
		}
	}
	return lifecycle.Retry(t)
}

// RequestAudit marks the task as awaiting the auditor review identified
// by auditTaskID. The audit_review task itself is created out-of-band by
// the coordinator before this is called.
func (m *Manager) RequestAudit(t *models.Task, auditTaskID string) error {
	return lifecycle.RequestAudit(t, auditTaskID)
}
