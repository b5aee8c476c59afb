package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/squad/internal/orchestrator"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

func newTestServer(t *testing.T) (*Server, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "squad.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	coord := orchestrator.NewCoordinator(db)
	return NewServer(coord, db, DefaultConfig()), db
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func decode(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), "body: %s", raw)
}

func createMission(t *testing.T, s *Server) *models.Mission {
	t.Helper()
	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/missions", CreateMissionRequest{
		Title: "Ship the release",
		Goal:  "get v2 out the door",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)
	var m models.Mission
	decode(t, raw, &m)
	return &m
}

func createAgent(t *testing.T, s *Server, name, role, missionID string) *models.Agent {
	t.Helper()
	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/agents", CreateAgentRequest{
		Name: name, Role: role, MissionID: missionID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)
	var a models.Agent
	decode(t, raw, &a)
	return &a
}

func createTask(t *testing.T, s *Server, missionID, title string, deps []string) *models.Task {
	t.Helper()
	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		MissionID: missionID, Title: title, Dependencies: deps,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)
	var task models.Task
	decode(t, raw, &task)
	return &task
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	resp, raw := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	decode(t, raw, &health)
	assert.Equal(t, "healthy", health.Status)

	resp, raw = doJSON(t, s, http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready ReadyResponse
	decode(t, raw, &ready)
	assert.True(t, ready.Ready)
}

func TestMissionLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)
	createTask(t, s, m.ID, "Prepare changelog", nil)

	resp, raw := doJSON(t, s, http.MethodGet, "/api/v1/missions/"+m.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Mission
	decode(t, raw, &got)
	assert.Equal(t, models.MissionStatusDraft, got.Status)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Pausing twice conflicts with the mission's state.
	resp, raw = doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, raw, &errResp)
	assert.Equal(t, "invalid_mission_state", errResp.Error)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/resume", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetMissionNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	resp, raw := doJSON(t, s, http.MethodGet, "/api/v1/missions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, raw, &errResp)
	assert.Equal(t, "mission_not_found", errResp.Error)
}

func TestSubmitPlan(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)

	plan := &models.Plan{
		Agents: []models.PlanAgent{{Name: "scout", Role: "researcher"}},
		Tasks: []models.PlanTask{
			{LocalID: "t1", Title: "Collect data", AssignTo: "scout"},
			{LocalID: "t2", Title: "Summarize data", Dependencies: []string{"t1"}},
		},
	}
	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/plan", SubmitPlanRequest{Plan: plan})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)
	var result orchestrator.PlanResult
	decode(t, raw, &result)
	assert.Len(t, result.TasksCreated, 2)
	assert.Len(t, result.AgentsCreated, 1)
}

func TestSubmitPlanRejectsEmptyTasks(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)

	plan := &models.Plan{Agents: []models.PlanAgent{{Name: "scout", Role: "researcher"}}}
	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/plan", SubmitPlanRequest{Plan: plan})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, raw, &errResp)
	assert.Equal(t, "invalid_plan", errResp.Error)
}

func TestAddDependencyCycleReturns409(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)
	a := createTask(t, s, m.ID, "A", nil)
	b := createTask(t, s, m.ID, "B", []string{a.ID})

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+a.ID+"/dependencies",
		AddDependencyRequest{DependsOnTaskID: b.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, raw, &errResp)
	assert.Equal(t, "circular_dependency", errResp.Error)
	assert.NotEmpty(t, errResp.Cycle)
}

func TestTaskFailureProtocolOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)
	agent := createAgent(t, s, "scout", "researcher", m.ID)
	task := createTask(t, s, m.ID, "Flaky extraction", nil)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fail orchestrator.FailResult
	for i := 1; i <= 3; i++ {
		resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/agents/"+agent.ID+"/next-task", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var next NextTaskResponse
		decode(t, raw, &next)
		require.NotNil(t, next.Task, "attempt %d should get the task", i)
		require.Equal(t, task.ID, next.Task.ID)

		resp, raw = doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+task.ID+"/fail",
			FailTaskRequest{Error: fmt.Sprintf("attempt %d exploded", i)})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
		decode(t, raw, &fail)
		assert.Equal(t, i, fail.RetryCount)
	}

	require.True(t, fail.NeedsAudit)
	require.NotEmpty(t, fail.AuditTaskID)

	// Manual retry is rejected while the audit is open.
	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+task.ID+"/retry", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, raw, &errResp)
	assert.Equal(t, "max_retries_exceeded", errResp.Error)
	assert.True(t, errResp.NeedsAudit)

	// The auditor grants one more attempt.
	resp, raw = doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+task.ID+"/auditor-decision",
		AuditorDecisionRequest{Decision: models.AuditDecisionRetry, Reason: "transient infra issue"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var decision AuditorDecisionResponse
	decode(t, raw, &decision)
	assert.Equal(t, models.AuditDecisionRetry, decision.Decision)

	resp, raw = doJSON(t, s, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Task
	decode(t, raw, &got)
	assert.Equal(t, 0, got.RetryCount)
	assert.Equal(t, 4, got.MaxRetries)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Empty(t, got.AuditorReviewID)
}

func TestAuditorDecisionUnknownReturns400(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)
	task := createTask(t, s, m.ID, "A", nil)

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+task.ID+"/auditor-decision",
		AuditorDecisionRequest{Decision: "shrug"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, raw, &errResp)
	assert.Equal(t, "unknown_audit_decision", errResp.Error)
}

func TestCompleteTaskOverHTTP(t *testing.T) {
	s, db := newTestServer(t)
	m := createMission(t, s)
	agent := createAgent(t, s, "scout", "researcher", m.ID)
	task := createTask(t, s, m.ID, "Collect data", nil)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/agents/"+agent.ID+"/next-task", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var next NextTaskResponse
	decode(t, raw, &next)
	require.NotNil(t, next.Task)

	resp, raw = doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+task.ID+"/complete",
		CompleteTaskRequest{Output: "dataset attached"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	stored, err := db.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)
	assert.Equal(t, "dataset attached", stored.Output)

	// Completing twice conflicts with the task's state.
	resp, raw = doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+task.ID+"/complete",
		CompleteTaskRequest{Output: "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, raw, &errResp)
	assert.Equal(t, "invalid_state_transition", errResp.Error)
}

func TestMissionDAGEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)
	a := createTask(t, s, m.ID, "A", nil)
	b := createTask(t, s, m.ID, "B", []string{a.ID})
	createTask(t, s, m.ID, "C", []string{b.ID})

	resp, raw := doJSON(t, s, http.MethodGet, "/api/v1/missions/"+m.ID+"/dag", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap orchestrator.DAGSnapshot
	decode(t, raw, &snap)
	assert.False(t, snap.HasCycles)
	assert.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Edges, 2)
	require.NotNil(t, snap.CriticalPath)
	assert.Len(t, snap.CriticalPath.TaskIDs, 3)
}

func TestCheckCompletionEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)
	agent := createAgent(t, s, "scout", "researcher", m.ID)
	task := createTask(t, s, m.ID, "Only task", nil)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/check-completion", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report orchestrator.CompletionReport
	decode(t, raw, &report)
	assert.False(t, report.Completed)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/agents/"+agent.ID+"/next-task", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/tasks/"+task.ID+"/complete", CompleteTaskRequest{Output: "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = doJSON(t, s, http.MethodPost, "/api/v1/missions/"+m.ID+"/check-completion", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, raw, &report)
	assert.True(t, report.Completed)
}

func TestListMissionTasksWithFilter(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)
	createTask(t, s, m.ID, "A", nil)
	createTask(t, s, m.ID, "B", nil)

	resp, raw := doJSON(t, s, http.MethodGet, "/api/v1/missions/"+m.ID+"/tasks?status=pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tasks []*models.Task
	decode(t, raw, &tasks)
	assert.Len(t, tasks, 2)

	resp, raw = doJSON(t, s, http.MethodGet, "/api/v1/missions/"+m.ID+"/tasks?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, raw, &tasks)
	assert.Empty(t, tasks)
}

func TestCreateTaskValidation(t *testing.T) {
	s, _ := newTestServer(t)
	m := createMission(t, s)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{MissionID: m.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		MissionID: m.ID, Title: "typed wrong", Type: "sorcery",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		MissionID: m.ID, Title: "ghost dep", Dependencies: []string{"missing"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
