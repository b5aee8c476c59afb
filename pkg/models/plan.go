package models

// Plan is the structured document produced by a squad lead agent.
// It is untrusted input: the coordinator validates it structurally
// before any entity is persisted.
type Plan struct {
	// Tasks lists the work items to materialize. Must be non-empty.
	Tasks []PlanTask `json:"tasks" yaml:"tasks"`
	// Agents lists the worker identities the plan expects. Must be non-empty.
	Agents []PlanAgent `json:"agents" yaml:"agents"`
	// Dependencies optionally lists extra dependency edges between plan
	// tasks, equivalent to naming the dependency on the task itself.
	Dependencies []PlanDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// PlanTask is one task specification inside a plan. The LocalID namespace
// is private to the plan; the coordinator resolves dependency references
// to persisted task IDs during materialization.
type PlanTask struct {
	// LocalID is the plan-local identifier other plan tasks reference.
	LocalID string `json:"id" yaml:"id"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Description provides detailed instructions for the task.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Type classifies the task. Defaults to custom when empty.
	Type TaskType `json:"type,omitempty" yaml:"type,omitempty"`
	// AssignTo names the plan agent that should execute the task.
	AssignTo string `json:"assign_to,omitempty" yaml:"assign_to,omitempty"`
	// Dependencies lists LocalIDs of plan tasks this task depends on.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// Input is the opaque payload handed to the executing agent.
	Input string `json:"input,omitempty" yaml:"input,omitempty"`
	// EstimateMinutes is the expected duration for critical-path analysis.
	EstimateMinutes float64 `json:"estimate_minutes,omitempty" yaml:"estimate_minutes,omitempty"`
	// MaxRetries overrides the default retry budget when positive.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// PlanDependency is one explicit dependency edge between plan tasks,
// referenced by LocalID.
type PlanDependency struct {
	// TaskID is the dependent plan task.
	TaskID string `json:"task" yaml:"task"`
	// DependsOn is the plan task that must complete first.
	DependsOn string `json:"depends_on" yaml:"depends_on"`
}

// PlanAgent is one agent specification inside a plan. Agents are created
// or reused by name during materialization.
type PlanAgent struct {
	// Name is the unique agent name.
	Name string `json:"name" yaml:"name"`
	// Role describes the agent's specialization.
	Role string `json:"role" yaml:"role"`
}
