package models

// AuditDecision is the action chosen by an auditor for a task that
// exhausted its automatic retries.
type AuditDecision string

const (
	// AuditDecisionReassign moves the task to a different agent.
	AuditDecisionReassign AuditDecision = "reassign"
	// AuditDecisionRefine rewrites the task description and resets retries.
	AuditDecisionRefine AuditDecision = "refine"
	// AuditDecisionEscalateHuman routes the task to a human operator.
	AuditDecisionEscalateHuman AuditDecision = "escalate_human"
	// AuditDecisionRetry grants exactly one extra attempt.
	AuditDecisionRetry AuditDecision = "retry"
)

// Valid returns true if the decision is a known value.
func (d AuditDecision) Valid() bool {
	switch d {
	case AuditDecisionReassign, AuditDecisionRefine, AuditDecisionEscalateHuman, AuditDecisionRetry:
		return true
	default:
		return false
	}
}

// AuditRuling is the full payload an auditor submits against a
// failed-and-audited task.
type AuditRuling struct {
	// Decision selects the recovery action.
	Decision AuditDecision `json:"decision"`
	// Reason explains the ruling.
	Reason string `json:"reason,omitempty"`
	// SuggestedAgentRole names the role to reassign to (reassign only).
	SuggestedAgentRole string `json:"suggested_agent_role,omitempty"`
	// RefinedDescription replaces the task description (refine only).
	RefinedDescription string `json:"refined_description,omitempty"`
	// QuestionForHuman is the prompt for the operator (escalate_human only).
	QuestionForHuman string `json:"question_for_human,omitempty"`
}
