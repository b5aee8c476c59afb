package orchestrator

import (
	"fmt"

	"github.com/ShayCichocki/squad/internal/graph"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// DAGNode is one task in a DAG snapshot.
type DAGNode struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Type       models.TaskType   `json:"type"`
	Status     models.TaskStatus `json:"status"`
	AssignedTo string            `json:"assigned_to,omitempty"`
	Level      int               `json:"level"`
	Executable bool              `json:"executable"`
	UnderAudit bool              `json:"under_audit"`
}

// DAGEdge is one dependency edge: From must complete before To may run.
type DAGEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DAGSnapshot is the full graph view of a mission for callers that
// render or analyze it.
type DAGSnapshot struct {
	MissionID    string              `json:"mission_id"`
	Nodes        []DAGNode           `json:"nodes"`
	Edges        []DAGEdge           `json:"edges"`
	Levels       map[string]int      `json:"levels"`
	HasCycles    bool                `json:"has_cycles"`
	Cycles       [][]string          `json:"cycles,omitempty"`
	CriticalPath *graph.CriticalPath `json:"critical_path,omitempty"`
	Blocked      []graph.BlockedTask `json:"blocked,omitempty"`
}

// MissionDAG builds a snapshot of the mission's dependency graph. A
// cyclic graph still produces a snapshot (with HasCycles set) so a
// caller can show the user what to fix.
func (c *Coordinator) MissionDAG(missionID string) (*DAGSnapshot, error) {
	if _, err := c.store.GetMission(missionID); err != nil {
		return nil, err
	}
	tasks, err := c.store.FindTasksByMission(missionID, state.TaskFilter{})
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(tasks)
	if err != nil {
		return nil, err
	}

	snap := &DAGSnapshot{
		MissionID: missionID,
		Nodes:     make([]DAGNode, 0, len(tasks)),
		Edges:     make([]DAGEdge, 0),
		Levels:    map[string]int{},
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			snap.Edges = append(snap.Edges, DAGEdge{From: dep, To: t.ID})
		}
	}

	if ce := g.DetectCycle(); ce != nil {
		snap.HasCycles = true
		snap.Cycles = append(snap.Cycles, ce.Cycle)
		for _, t := range tasks {
			snap.Nodes = append(snap.Nodes, DAGNode{
				ID: t.ID, Title: t.Title, Type: t.Type, Status: t.Status,
				AssignedTo: t.AssignedTo, UnderAudit: t.UnderAudit(),
			})
		}
		return snap, nil
	}

	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	snap.Levels = levels

	executable := map[string]bool{}
	for _, t := range g.Executable() {
		executable[t.ID] = true
	}

	for _, t := range tasks {
		snap.Nodes = append(snap.Nodes, DAGNode{
			ID: t.ID, Title: t.Title, Type: t.Type, Status: t.Status,
			AssignedTo: t.AssignedTo, Level: levels[t.ID],
			Executable: executable[t.ID], UnderAudit: t.UnderAudit(),
		})
	}

	if cp, err := g.ComputeCriticalPath(); err == nil {
		snap.CriticalPath = &cp
	}
	snap.Blocked = g.Blocked()
	return snap, nil
}

// AddDependency makes taskID depend on dependsOnTaskID after validating
// the edge would not introduce a cycle, a self-reference, or a dangling
// target. Returns CycleError for an edge that closes a loop.
func (c *Coordinator) AddDependency(taskID, dependsOnTaskID string) (*models.Task, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	tasks, err := c.store.FindTasksByMission(task.MissionID, state.TaskFilter{})
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range tasks {
		if t.ID == dependsOnTaskID {
			found = true
			break
		}
	}
	if !found {
		return nil, &state.NotFoundError{Kind: "task", ID: dependsOnTaskID}
	}

	if err := graph.ValidateNewDependency(tasks, taskID, dependsOnTaskID); err != nil {
		return nil, err
	}

	// Dependencies are a set; re-adding an existing edge is a no-op.
	if task.DependsOn(dependsOnTaskID) {
		return task, nil
	}

	task.Dependencies = append(task.Dependencies, dependsOnTaskID)
	if err := c.store.UpdateTask(task); err != nil {
		return nil, err
	}
	c.logger.Log("dependency added: %s now depends on %s", taskID, dependsOnTaskID)
	return task, nil
}

// RemoveDependency removes an existing dependency edge.
func (c *Coordinator) RemoveDependency(taskID, dependsOnTaskID string) (*models.Task, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	found := false
	deps := task.Dependencies[:0]
	for _, dep := range task.Dependencies {
		if dep == dependsOnTaskID {
			found = true
			continue
		}
		deps = append(deps, dep)
	}
	if !found {
		return nil, fmt.Errorf("task %s does not depend on %s", taskID, dependsOnTaskID)
	}
	task.Dependencies = deps

	if err := c.store.UpdateTask(task); err != nil {
		return nil, err
	}
	c.logger.Log("dependency removed: %s no longer depends on %s", taskID, dependsOnTaskID)
	return task, nil
}
