package graph

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/squad/pkg/models"
)

func pendingTask(id string, deps ...string) *models.Task {
	return &models.Task{
		ID:           id,
		Title:        id,
		Status:       models.TaskStatusPending,
		Dependencies: deps,
	}
}

// diamond returns the A -> B, A -> C, B -> D, C -> D mission
// (B and C depend on A; D depends on both).
func diamond() []*models.Task {
	return []*models.Task{
		pendingTask("A"),
		pendingTask("B", "A"),
		pendingTask("C", "A"),
		pendingTask("D", "B", "C"),
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	_, err := Build([]*models.Task{pendingTask("A", "ghost")})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestDetectCycleNone(t *testing.T) {
	g, err := Build(diamond())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cerr := g.DetectCycle(); cerr != nil {
		t.Fatalf("unexpected cycle: %v", cerr)
	}
}

func TestDetectCycleReportsPath(t *testing.T) {
	g, err := Build([]*models.Task{
		pendingTask("A", "B"),
		pendingTask("B", "C"),
		pendingTask("C", "A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cerr := g.DetectCycle()
	if cerr == nil {
		t.Fatal("expected cycle error")
	}
	if len(cerr.Cycle) != 4 {
		t.Fatalf("expected cycle of length 4, got %v", cerr.Cycle)
	}
	if cerr.Cycle[0] != cerr.Cycle[len(cerr.Cycle)-1] {
		t.Errorf("expected cycle to close on its first node, got %v", cerr.Cycle)
	}

	// The cycle must be a rotation of A -> B -> C.
	seen := map[string]bool{}
	for _, id := range cerr.Cycle[:3] {
		seen[id] = true
	}
	for _, id := range []string{"A", "B", "C"} {
		if !seen[id] {
			t.Errorf("expected %s in cycle %v", id, cerr.Cycle)
		}
	}
}

func TestLevelsDiamond(t *testing.T) {
	g, err := Build(diamond())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int{"A": 0, "B": 1, "C": 1, "D": 2}
	for id, level := range want {
		if levels[id] != level {
			t.Errorf("level(%s) = %d, want %d", id, levels[id], level)
		}
	}
}

func TestLevelsCyclicGraph(t *testing.T) {
	g, _ := Build([]*models.Task{
		pendingTask("A", "B"),
		pendingTask("B", "A"),
	})

	_, err := g.Levels()
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestExecutableAndBlockedDiamond(t *testing.T) {
	tasks := diamond()
	g, _ := Build(tasks)

	ready := g.Executable()
	if len(ready) != 1 || ready[0].ID != "A" {
		t.Fatalf("expected only A executable, got %v", taskIDs(ready))
	}

	blocked := g.Blocked()
	if len(blocked) != 3 {
		t.Fatalf("expected 3 blocked tasks, got %d", len(blocked))
	}

	// Complete A: B and C unblock, D stays blocked by both.
	tasks[0].Status = models.TaskStatusCompleted
	g, _ = Build(tasks)

	ready = g.Executable()
	if got := taskIDs(ready); len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Fatalf("expected B and C executable, got %v", got)
	}

	var dBlockers []Blocker
	for _, b := range g.Blocked() {
		if b.Task.ID == "D" {
			dBlockers = b.Blockers
		}
	}
	if len(dBlockers) != 2 {
		t.Fatalf("expected D blocked by 2 tasks, got %v", dBlockers)
	}

	// Complete B and C: D becomes executable.
	tasks[1].Status = models.TaskStatusCompleted
	tasks[2].Status = models.TaskStatusCompleted
	g, _ = Build(tasks)

	ready = g.Executable()
	if len(ready) != 1 || ready[0].ID != "D" {
		t.Fatalf("expected only D executable, got %v", taskIDs(ready))
	}
}

func TestExecutableExcludesAuditedTasks(t *testing.T) {
	tasks := []*models.Task{pendingTask("A")}
	tasks[0].AuditorReviewID = "audit-1"

	g, _ := Build(tasks)
	if ready := g.Executable(); len(ready) != 0 {
		t.Fatalf("task under audit must not be executable, got %v", taskIDs(ready))
	}
}

func TestComputeCriticalPath(t *testing.T) {
	tasks := diamond()
	// A=10, B=5, C=20, D=2: longest chain is A -> C -> D with weight 32.
	tasks[0].EstimateMinutes = 10
	tasks[1].EstimateMinutes = 5
	tasks[2].EstimateMinutes = 20
	tasks[3].EstimateMinutes = 2

	g, _ := Build(tasks)
	cp, err := g.ComputeCriticalPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cp.TotalWeight != 32 {
		t.Errorf("expected total weight 32, got %v", cp.TotalWeight)
	}
	want := []string{"A", "C", "D"}
	if len(cp.TaskIDs) != len(want) {
		t.Fatalf("expected path %v, got %v", want, cp.TaskIDs)
	}
	for i, id := range want {
		if cp.TaskIDs[i] != id {
			t.Fatalf("expected path %v, got %v", want, cp.TaskIDs)
		}
	}
}

func TestComputeCriticalPathDefaultWeights(t *testing.T) {
	g, _ := Build(diamond())
	cp, err := g.ComputeCriticalPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Unestimated tasks weigh 1; the longest chain has 3 tasks.
	if cp.TotalWeight != 3 {
		t.Errorf("expected total weight 3, got %v", cp.TotalWeight)
	}
}

func TestComputeCriticalPathEmptyGraph(t *testing.T) {
	g, _ := Build(nil)
	cp, err := g.ComputeCriticalPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cp.TaskIDs) != 0 || cp.TotalWeight != 0 {
		t.Errorf("expected empty path, got %v (%v)", cp.TaskIDs, cp.TotalWeight)
	}
}

func TestValidateNewDependency(t *testing.T) {
	tasks := []*models.Task{
		pendingTask("A"),
		pendingTask("B", "A"),
	}

	if err := ValidateNewDependency(tasks, "A", "A"); err == nil {
		t.Error("expected self-reference to be rejected")
	}

	if err := ValidateNewDependency(tasks, "ghost", "A"); err == nil {
		t.Error("expected unknown task to be rejected")
	}

	// A -> B already exists (B depends on A); adding A depends on B closes a cycle.
	err := ValidateNewDependency(tasks, "A", "B")
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError, got %v", err)
	}

	// A valid edge passes and does not mutate the input tasks.
	if err := ValidateNewDependency(tasks, "B", "A"); err != nil {
		t.Errorf("unexpected error for existing edge: %v", err)
	}
	if len(tasks[0].Dependencies) != 0 {
		t.Errorf("input tasks must not be mutated, got %v", tasks[0].Dependencies)
	}
}

func TestDependents(t *testing.T) {
	g, _ := Build(diamond())
	deps := g.Dependents("A")
	if len(deps) != 2 || deps[0] != "B" || deps[1] != "C" {
		t.Errorf("expected [B C], got %v", deps)
	}
}

func taskIDs(tasks []*models.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}
