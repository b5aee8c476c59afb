// Package audit applies auditor rulings to tasks that exhausted their
// automatic retries. All effects on the original task land in a single
// document update; side-effect tasks (human_input) are created first so
// no step needs cross-document atomicity.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/squad/internal/lifecycle"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// NoEligibleAgentError reports that no agent could satisfy a reassign ruling.
type NoEligibleAgentError struct {
	// Role is the requested agent role.
	Role string
}

// Error implements the error interface.
func (e *NoEligibleAgentError) Error() string {
	return fmt.Sprintf("no eligible agent found for role %q", e.Role)
}

// UnknownDecisionError reports a ruling whose decision value is not in
// the closed decision set.
type UnknownDecisionError struct {
	// Decision is the rejected value.
	Decision models.AuditDecision
}

// Error implements the error interface.
func (e *UnknownDecisionError) Error() string {
	return fmt.Sprintf("unknown audit decision %q", e.Decision)
}

// Scorer selects the best available agent for a role within a mission.
// Implementations return nil (with no error) when no agent qualifies.
type Scorer interface {
	SelectBest(role, missionID string) (*models.Agent, error)
}

// Result summarizes the applied ruling for the caller.
type Result struct {
	// Decision is the ruling that was applied.
	Decision models.AuditDecision `json:"decision"`
	// Message is a human-readable summary of the effect.
	Message string `json:"message"`
	// HumanTaskID is the created human_input task (escalate_human only).
	HumanTaskID string `json:"human_task_id,omitempty"`
}

// Processor applies auditor rulings against audited tasks.
type Processor struct {
	tasks  state.TaskStore
	scorer Scorer
	now    func() time.Time
	newID  func() string
}

// NewProcessor creates a processor persisting through tasks and selecting
// reassignment targets through scorer.
func NewProcessor(tasks state.TaskStore, scorer Scorer) *Processor {
	return &Processor{
		tasks:  tasks,
		scorer: scorer,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// WithClock overrides the processor's clock, for tests.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// WithIDFunc overrides the processor's ID generator, for tests.
func (p *Processor) WithIDFunc(newID func() string) *Processor {
	p.newID = newID
	return p
}

// Apply executes an auditor ruling against a task awaiting review and
// persists the effect. The task pointer reflects the applied state on
// return.
func (p *Processor) Apply(t *models.Task, ruling models.AuditRuling) (*Result, error) {
	if !ruling.Decision.Valid() {
		return nil, &UnknownDecisionError{Decision: ruling.Decision}
	}
	if !t.UnderAudit() {
		return nil, &lifecycle.InvalidTransitionError{
			TaskID: t.ID, From: t.Status, Event: lifecycle.EventAuditDecision,
			Reason: "task is not awaiting an auditor decision",
		}
	}

	switch ruling.Decision {
	case models.AuditDecisionReassign:
		return p.applyReassign(t, ruling)
	case models.AuditDecisionRefine:
		return p.applyRefine(t, ruling)
	case models.AuditDecisionEscalateHuman:
		return p.applyEscalateHuman(t, ruling)
	case models.AuditDecisionRetry:
		return p.applyRetry(t)
	default:
		// Unreachable: Valid() covers the closed set.
		return nil, &UnknownDecisionError{Decision: ruling.Decision}
	}
}

// applyReassign hands the task to the best-scoring agent of the
// suggested role and returns it to pending.
func (p *Processor) applyReassign(t *models.Task, ruling models.AuditRuling) (*Result, error) {
	agent, err := p.scorer.SelectBest(ruling.SuggestedAgentRole, t.MissionID)
	if err != nil {
		return nil, fmt.Errorf("select agent: %w", err)
	}
	if agent == nil {
		return nil, &NoEligibleAgentError{Role: ruling.SuggestedAgentRole}
	}

	if err := lifecycle.ResolveAudit(t); err != nil {
		return nil, err
	}
	t.AssignedTo = agent.ID

	if err := p.tasks.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("persist reassign: %w", err)
	}
	return &Result{
		Decision: models.AuditDecisionReassign,
		Message:  fmt.Sprintf("task reassigned to agent %s (%s)", agent.Name, agent.Role),
	}, nil
}

// applyRefine replaces the task description and resets the retry budget.
func (p *Processor) applyRefine(t *models.Task, ruling models.AuditRuling) (*Result, error) {
	if ruling.RefinedDescription == "" {
		return nil, fmt.Errorf("refine ruling requires a refined description")
	}

	if err := lifecycle.ResolveAudit(t); err != nil {
		return nil, err
	}
	t.Description = ruling.RefinedDescription
	t.RetryCount = 0

	if err := p.tasks.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("persist refine: %w", err)
	}
	return &Result{
		Decision: models.AuditDecisionRefine,
		Message:  "task description refined and retries reset",
	}, nil
}

// applyEscalateHuman creates the human_input task first, then updates the
// original in a single write, so a crash between the two leaves only an
// orphan human task rather than a dangling reference.
func (p *Processor) applyEscalateHuman(t *models.Task, ruling models.AuditRuling) (*Result, error) {
	if ruling.QuestionForHuman == "" {
		return nil, fmt.Errorf("escalate_human ruling requires a question for the human")
	}

	humanTask := &models.Task{
		ID:           p.newID(),
		MissionID:    t.MissionID,
		Title:        fmt.Sprintf("Human input needed: %s", t.Title),
		Description:  ruling.QuestionForHuman,
		Type:         models.TaskTypeHumanInput,
		Status:       models.TaskStatusPending,
		MaxRetries:   models.DefaultMaxRetries,
		OriginTaskID: t.ID,
		CreatedAt:    p.now(),
	}
	if err := p.tasks.CreateTask(humanTask); err != nil {
		return nil, fmt.Errorf("create human task: %w", err)
	}

	if err := lifecycle.EscalateToHuman(t, humanTask.ID); err != nil {
		return nil, err
	}
	if err := p.tasks.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("persist escalation: %w", err)
	}
	return &Result{
		Decision:    models.AuditDecisionEscalateHuman,
		Message:     "task escalated to human operator",
		HumanTaskID: humanTask.ID,
	}, nil
}

// applyRetry grants exactly one extra attempt and returns the task to pending.
func (p *Processor) applyRetry(t *models.Task) (*Result, error) {
	if err := lifecycle.ResolveAudit(t); err != nil {
		return nil, err
	}
	t.RetryCount = 0
	t.MaxRetries++

	if err := p.tasks.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("persist retry ruling: %w", err)
	}
	return &Result{
		Decision: models.AuditDecisionRetry,
		Message:  fmt.Sprintf("retries reset, budget raised to %d", t.MaxRetries),
	}, nil
}
