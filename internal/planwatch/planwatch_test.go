package planwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/squad/internal/orchestrator"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

func newTestWatcher(t *testing.T) (*Watcher, *state.DB, string) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "squad.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	coord := orchestrator.NewCoordinator(db)

	dir := filepath.Join(t.TempDir(), "plans")
	w, err := NewWatcher(dir, coord)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	return w, db, dir
}

func seedMission(t *testing.T, db *state.DB) {
	t.Helper()
	m := &models.Mission{
		ID:        "mission-1",
		Title:     "Research launch readiness",
		Status:    models.MissionStatusDraft,
		CreatedAt: time.Now(),
	}
	if err := db.CreateMission(m); err != nil {
		t.Fatalf("create mission: %v", err)
	}
}

const validPlanYAML = `
mission_id: mission-1
agents:
  - name: scout
    role: researcher
tasks:
  - id: t1
    title: Gather sources
    assign_to: scout
  - id: t2
    title: Draft report
    dependencies: [t1]
`

func TestNewWatcherCreatesDirectories(t *testing.T) {
	w, _, dir := newTestWatcher(t)
	_ = w

	for _, sub := range []string{dir, filepath.Join(dir, "processed"), filepath.Join(dir, "failed")} {
		info, err := os.Stat(sub)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", sub, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", sub)
		}
	}
}

func TestScanProcessesValidPlan(t *testing.T) {
	w, db, dir := newTestWatcher(t)
	seedMission(t, db)

	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(validPlanYAML), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	w.scan()

	tasks, err := db.FindTasksByMission("mission-1", state.TaskFilter{})
	if err != nil {
		t.Fatalf("find tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	agents, err := db.FindAgentsByRole("researcher")
	if err != nil {
		t.Fatalf("find agents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(agents))
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected plan file to be moved out of the drop directory")
	}

	processed, err := os.ReadDir(filepath.Join(dir, "processed"))
	if err != nil {
		t.Fatalf("read processed dir: %v", err)
	}
	if len(processed) != 1 {
		t.Errorf("expected 1 file in processed/, got %d", len(processed))
	}
}

func TestScanProcessesJSONPlan(t *testing.T) {
	w, db, dir := newTestWatcher(t)
	seedMission(t, db)

	planJSON := `{
		"mission_id": "mission-1",
		"agents": [{"name": "scout", "role": "researcher"}],
		"tasks": [{"id": "t1", "title": "Gather sources"}]
	}`
	path := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(path, []byte(planJSON), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	w.scan()

	tasks, err := db.FindTasksByMission("mission-1", state.TaskFilter{})
	if err != nil {
		t.Fatalf("find tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
}

func TestScanMovesUnparsablePlanToFailed(t *testing.T) {
	w, _, dir := newTestWatcher(t)

	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("tasks: [unclosed"), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	w.scan()

	failed, err := os.ReadDir(filepath.Join(dir, "failed"))
	if err != nil {
		t.Fatalf("read failed dir: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("expected 1 file in failed/, got %d", len(failed))
	}
}

func TestScanMovesUnknownMissionToFailed(t *testing.T) {
	w, db, dir := newTestWatcher(t)
	_ = db // no mission seeded

	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(validPlanYAML), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	w.scan()

	failed, err := os.ReadDir(filepath.Join(dir, "failed"))
	if err != nil {
		t.Fatalf("read failed dir: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("expected 1 file in failed/, got %d", len(failed))
	}
}

func TestScanRejectsPlanWithoutMissionID(t *testing.T) {
	w, db, dir := newTestWatcher(t)
	seedMission(t, db)

	planYAML := `
agents:
  - name: scout
    role: researcher
tasks:
  - id: t1
    title: Gather sources
`
	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(planYAML), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	w.scan()

	failed, err := os.ReadDir(filepath.Join(dir, "failed"))
	if err != nil {
		t.Fatalf("read failed dir: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("expected 1 file in failed/, got %d", len(failed))
	}
}

func TestScanIgnoresNonPlanFiles(t *testing.T) {
	w, _, dir := newTestWatcher(t)

	path := filepath.Join(dir, "README.md")
	if err := os.WriteFile(path, []byte("notes"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	w.scan()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected non-plan file to stay put: %v", err)
	}
}

func TestProcessIgnoresConsumedFile(t *testing.T) {
	w, db, dir := newTestWatcher(t)
	seedMission(t, db)

	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(validPlanYAML), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	w.process(path)
	// A duplicate event for the same path must not double-apply the plan.
	w.process(path)

	tasks, err := db.FindTasksByMission("mission-1", state.TaskFilter{})
	if err != nil {
		t.Fatalf("find tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
}

func TestStartPicksUpDroppedFile(t *testing.T) {
	w, db, dir := newTestWatcher(t)
	seedMission(t, db)

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(validPlanYAML), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		tasks, err := db.FindTasksByMission("mission-1", state.TaskFilter{})
		if err != nil {
			t.Fatalf("find tasks: %v", err)
		}
		if len(tasks) == 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("plan file was not processed before the deadline")
}
