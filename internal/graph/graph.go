// Package graph builds the per-mission dependency DAG and answers
// scheduling questions over it: cycle detection, topological levels,
// executable and blocked sets, and the weighted critical path.
//
// The graph is rebuilt from the mission's task set at each call site;
// mission task counts are small, so there is no incremental cache.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/squad/pkg/models"
)

// CycleError reports a circular dependency. Cycle holds the offending
// task IDs in dependency order, with the first ID repeated at the end.
type CycleError struct {
	Cycle []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is a directed acyclic graph of task dependencies for one mission.
// Edges point from a task to the tasks it depends on.
type Graph struct {
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
}

// Build constructs the dependency graph from a mission's tasks.
// It rejects dependencies that reference unknown tasks; cycle detection
// is a separate, explicit step so callers can report the offending path.
func Build(tasks []*models.Task) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*models.Task, len(tasks)),
		edges: make(map[string][]string, len(tasks)),
	}

	for _, task := range tasks {
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return nil, fmt.Errorf("task %s depends on unknown task %s", task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	return g, nil
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Task returns the task for a given ID, or nil if not found.
func (g *Graph) Task(taskID string) *models.Task {
	return g.nodes[taskID]
}

// Dependencies returns the IDs of tasks the given task depends on.
func (g *Graph) Dependencies(taskID string) []string {
	return g.edges[taskID]
}

// Dependents returns the IDs of tasks that depend on the given task.
func (g *Graph) Dependents(taskID string) []string {
	var dependents []string
	for _, id := range g.sortedIDs() {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// DetectCycle returns a CycleError describing the first cycle found,
// or nil if the graph is acyclic. Uses depth-first search with an
// explicit recursion stack so the offending path can be reported.
func (g *Graph) DetectCycle() *CycleError {
	// Color states: 0 = white (unvisited), 1 = gray (on stack), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: slice the stack from the first occurrence
				// of depID to report the full cycle.
				start := 0
				for i, sid := range stack {
					if sid == depID {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, stack[start:]...), depID)
				return &CycleError{Cycle: cycle}
			case 0:
				if err := visit(depID); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return nil
	}

	for _, id := range g.sortedIDs() {
		if colors[id] == 0 {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// TopologicalOrder returns task IDs with every dependency before its
// dependents. Returns a CycleError if the graph is cyclic.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycle(); err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}

	return result, nil
}

// Levels computes the topological level of every task:
// 0 for tasks with no dependencies, else 1 + max level of dependencies.
// Returns a CycleError if the graph is cyclic.
func (g *Graph) Levels() (map[string]int, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	levels := make(map[string]int, len(order))
	for _, id := range order {
		level := 0
		for _, depID := range g.edges[id] {
			if levels[depID]+1 > level {
				level = levels[depID] + 1
			}
		}
		levels[id] = level
	}

	return levels, nil
}

// Executable returns the tasks eligible for dispatch: pending, not under
// audit, and with every dependency completed.
func (g *Graph) Executable() []*models.Task {
	var ready []*models.Task
	for _, id := range g.sortedIDs() {
		task := g.nodes[id]
		if !task.Dispatchable() {
			continue
		}
		if g.depsCompleted(id) {
			ready = append(ready, task)
		}
	}
	return ready
}

// Blocker describes one incomplete dependency holding a task back.
type Blocker struct {
	// TaskID is the blocking dependency's ID.
	TaskID string `json:"task_id"`
	// Status is the blocking dependency's current status.
	Status models.TaskStatus `json:"status"`
}

// BlockedTask pairs a pending task with the dependencies blocking it.
type BlockedTask struct {
	// Task is the blocked task.
	Task *models.Task `json:"task"`
	// Blockers lists the incomplete dependencies.
	Blockers []Blocker `json:"blockers"`
}

// Blocked returns pending tasks with at least one incomplete dependency,
// each carrying the blocking dependency IDs and their statuses.
func (g *Graph) Blocked() []BlockedTask {
	var blocked []BlockedTask
	for _, id := range g.sortedIDs() {
		task := g.nodes[id]
		if task.Status != models.TaskStatusPending {
			continue
		}

		var blockers []Blocker
		for _, depID := range g.edges[id] {
			dep := g.nodes[depID]
			if dep.Status != models.TaskStatusCompleted {
				blockers = append(blockers, Blocker{TaskID: depID, Status: dep.Status})
			}
		}
		if len(blockers) > 0 {
			blocked = append(blocked, BlockedTask{Task: task, Blockers: blockers})
		}
	}
	return blocked
}

// CriticalPath is the longest weighted dependency chain in the graph.
type CriticalPath struct {
	// TaskIDs is the path ordered from its first task to its last.
	TaskIDs []string `json:"task_ids"`
	// TotalWeight is the summed task weight along the path.
	TotalWeight float64 `json:"total_weight"`
}

// ComputeCriticalPath finds the longest weighted path through the DAG
// using each task's estimate as its weight. Returns a CycleError if the
// graph is cyclic; returns an empty path for an empty graph.
func (g *Graph) ComputeCriticalPath() (CriticalPath, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return CriticalPath{}, err
	}

	dist := make(map[string]float64, len(order))
	pred := make(map[string]string, len(order))

	for _, id := range order {
		best := 0.0
		bestPred := ""
		for _, depID := range g.edges[id] {
			if dist[depID] > best {
				best = dist[depID]
				bestPred = depID
			}
		}
		dist[id] = g.nodes[id].Weight() + best
		pred[id] = bestPred
	}

	// Find the endpoint of the longest path.
	endID := ""
	maxDist := 0.0
	for _, id := range order {
		if dist[id] > maxDist {
			maxDist = dist[id]
			endID = id
		}
	}
	if endID == "" {
		return CriticalPath{}, nil
	}

	// Walk predecessors back to a root, then reverse.
	var reversed []string
	for id := endID; id != ""; id = pred[id] {
		reversed = append(reversed, id)
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}

	return CriticalPath{TaskIDs: path, TotalWeight: maxDist}, nil
}

// ValidateNewDependency checks whether adding depID to taskID's dependency
// set keeps the graph a DAG. It rejects self-references, unknown tasks,
// and any edge that would close a cycle (returned as a CycleError).
func ValidateNewDependency(tasks []*models.Task, taskID, depID string) error {
	if taskID == depID {
		return fmt.Errorf("task %s cannot depend on itself", taskID)
	}

	var target *models.Task
	copies := make([]*models.Task, 0, len(tasks))
	for _, task := range tasks {
		c := *task
		copies = append(copies, &c)
		if c.ID == taskID {
			target = &c
		}
	}
	if target == nil {
		return fmt.Errorf("task %s not found in mission task set", taskID)
	}

	if !target.DependsOn(depID) {
		target.Dependencies = append(append([]string{}, target.Dependencies...), depID)
	}

	g, err := Build(copies)
	if err != nil {
		return err
	}
	if cerr := g.DetectCycle(); cerr != nil {
		return cerr
	}
	return nil
}

// depsCompleted reports whether every dependency of taskID is completed.
func (g *Graph) depsCompleted(taskID string) bool {
	for _, depID := range g.edges[taskID] {
		if g.nodes[depID].Status != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// sortedIDs returns node IDs in lexical order for deterministic iteration.
func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
